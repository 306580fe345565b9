package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	actionitems "opsboard/internal/actionitems/domain"
	"opsboard/internal/auth"
)

// Repository persists action items.
type Repository interface {
	Create(ctx context.Context, item *actionitems.Item) error
	GetByID(ctx context.Context, id string) (*actionitems.Item, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]actionitems.Item, error)
	Update(ctx context.Context, item *actionitems.Item) error
}

// AnomalyLinker attaches a created action item back to its source anomaly.
type AnomalyLinker interface {
	LinkActionItem(ctx context.Context, anomalyID, actionItemID string) error
}

// ListFilter narrows action item queries.
type ListFilter struct {
	Status      actionitems.Status
	Assignee    string
	LocationIDs []string
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service implements the action item workflow.
type Service struct {
	repo   Repository
	linker AnomalyLinker
	clock  Clock
}

// Option customizes the service.
type Option func(*Service)

// WithLinker assigns an anomaly linker.
func WithLinker(linker AnomalyLinker) Option {
	return func(s *Service) { s.linker = linker }
}

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service.
func NewService(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("action items: nil repository")
	}
	service := &Service{repo: repo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateInput carries the fields a caller may set on creation.
type CreateInput struct {
	Title      string
	Notes      string
	Assignee   string
	LocationID string
	AnomalyID  string
}

// Create stores a new OPEN action item for the calling tenant. When the input
// names an anomaly, the anomaly is linked back to the new item.
func (s *Service) Create(ctx context.Context, input CreateInput) (*actionitems.Item, error) {
	if s == nil {
		return nil, errors.New("action items: nil service")
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return nil, errors.New("action items: missing tenant")
	}
	if input.LocationID != "" {
		if err := auth.EnsureLocationAllowed(ctx, input.LocationID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	item := &actionitems.Item{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		LocationID: input.LocationID,
		AnomalyID:  input.AnomalyID,
		Title:      input.Title,
		Notes:      input.Notes,
		Assignee:   input.Assignee,
		Status:     actionitems.StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	if input.AnomalyID != "" && s.linker != nil {
		if err := s.linker.LinkActionItem(ctx, input.AnomalyID, item.ID); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// List returns the tenant's action items matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]actionitems.Item, error) {
	if s == nil {
		return nil, errors.New("action items: nil service")
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return nil, errors.New("action items: missing tenant")
	}
	return s.repo.List(ctx, orgID, filter)
}

// UpdateInput carries the mutable fields of an action item. Empty fields are
// left unchanged.
type UpdateInput struct {
	Status   actionitems.Status
	Assignee string
	Notes    string
}

// Update mutates an action item's status, assignee, or notes.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*actionitems.Item, error) {
	if s == nil {
		return nil, errors.New("action items: nil service")
	}
	if id == "" {
		return nil, errors.New("action items: id required")
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, actionitems.ErrNotFound
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID != "" && item.OrgID != orgID {
		return nil, actionitems.ErrNotFound
	}
	if item.LocationID != "" {
		if err := auth.EnsureLocationAllowed(ctx, item.LocationID); err != nil {
			return nil, err
		}
	}

	if input.Status != "" {
		item.Status = input.Status
	}
	if input.Assignee != "" {
		item.Assignee = input.Assignee
	}
	if input.Notes != "" {
		item.Notes = input.Notes
	}
	item.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
