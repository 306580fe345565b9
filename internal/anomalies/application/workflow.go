package application

import (
	"context"
	"errors"
	"time"

	anomalies "opsboard/internal/anomalies/domain"
	"opsboard/internal/auth"
)

// ListFilter narrows anomaly queries.
type ListFilter struct {
	Status      anomalies.Status
	LocationIDs []string
}

// Repository provides the anomaly store for the ops workflow.
type Repository interface {
	AnomalyWriter
	GetByID(ctx context.Context, id string) (*anomalies.Anomaly, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]anomalies.Anomaly, error)
	Update(ctx context.Context, id string, status anomalies.Status, actionItemID string, updatedAt time.Time) error
}

// WorkflowService mutates anomaly status and action item links on behalf of
// the ops workflow. Detection never touches these fields.
type WorkflowService struct {
	repo  Repository
	clock Clock
}

// NewWorkflowService constructs a workflow service.
func NewWorkflowService(repo Repository, opts ...WorkflowOption) (*WorkflowService, error) {
	if repo == nil {
		return nil, errors.New("anomaly workflow: nil repository")
	}
	service := &WorkflowService{repo: repo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// WorkflowOption customizes the service.
type WorkflowOption func(*WorkflowService)

// WithWorkflowClock assigns a clock.
func WithWorkflowClock(clock Clock) WorkflowOption {
	return func(s *WorkflowService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// List returns the tenant's anomalies matching the filter.
func (s *WorkflowService) List(ctx context.Context, filter ListFilter) ([]anomalies.Anomaly, error) {
	if s == nil {
		return nil, errors.New("anomaly workflow: nil service")
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return nil, errors.New("anomaly workflow: missing tenant")
	}
	return s.repo.List(ctx, orgID, filter)
}

// Update changes an anomaly's workflow status and/or action item link.
func (s *WorkflowService) Update(ctx context.Context, id string, status anomalies.Status, actionItemID string) (*anomalies.Anomaly, error) {
	if s == nil {
		return nil, errors.New("anomaly workflow: nil service")
	}
	if id == "" {
		return nil, errors.New("anomaly workflow: anomaly id required")
	}

	anomaly, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if anomaly == nil {
		return nil, anomalies.ErrNotFound
	}

	orgID := auth.OrgIDFromContext(ctx)
	if orgID != "" && anomaly.OrgID != orgID {
		return nil, anomalies.ErrNotFound
	}
	if err := auth.EnsureLocationAllowed(ctx, anomaly.LocationID); err != nil {
		return nil, err
	}

	if status == "" {
		status = anomaly.Status
	}
	if actionItemID == "" {
		actionItemID = anomaly.ActionItemID
	}
	updatedAt := s.clock.Now().UTC()
	if err := s.repo.Update(ctx, id, status, actionItemID, updatedAt); err != nil {
		return nil, err
	}
	anomaly.Status = status
	anomaly.ActionItemID = actionItemID
	anomaly.UpdatedAt = updatedAt
	return anomaly, nil
}

// LinkActionItem attaches an action item to an anomaly without touching its
// workflow status.
func (s *WorkflowService) LinkActionItem(ctx context.Context, anomalyID, actionItemID string) error {
	if actionItemID == "" {
		return errors.New("anomaly workflow: action item id required")
	}
	_, err := s.Update(ctx, anomalyID, "", actionItemID)
	return err
}
