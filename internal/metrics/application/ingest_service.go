package application

import (
	"context"
	"errors"

	metrics "opsboard/internal/metrics/domain"
)

// EventStore persists metric events with the recompute queue span in one
// atomic unit.
type EventStore interface {
	// FilterExistingIDs returns the subset of ids already present.
	FilterExistingIDs(ctx context.Context, eventIDs []string) (map[string]struct{}, error)
	// IngestBatch inserts new events and upsert-merges the dirty span into the
	// tenant's recompute queue entry. Either everything commits or nothing does.
	IngestBatch(ctx context.Context, orgID string, events []metrics.Event, span metrics.Span) error
}

// Result summarizes one ingestion call for caller reporting.
type Result struct {
	Processed        int      `json:"processed"`
	CreatedCount     int      `json:"createdCount"`
	ExistingCount    int      `json:"existingCount"`
	CreatedEventIDs  []string `json:"createdEventIds"`
	ExistingEventIDs []string `json:"existingEventIds"`
}

// IngestionService idempotently persists validated metric event batches.
type IngestionService struct {
	store EventStore
}

// NewIngestionService constructs an ingestion service.
func NewIngestionService(store EventStore) (*IngestionService, error) {
	if store == nil {
		return nil, errors.New("ingestion service: nil event store")
	}
	return &IngestionService{store: store}, nil
}

// Ingest persists the batch, skipping events whose idempotency key is already
// known. "Some already existed" is the expected retry path, not an error.
func (s *IngestionService) Ingest(ctx context.Context, orgID string, events []metrics.Event, source metrics.Source) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, errors.New("ingestion service: nil store")
	}
	if orgID == "" {
		return Result{}, errors.New("ingestion service: empty org id")
	}
	result := Result{
		CreatedEventIDs:  []string{},
		ExistingEventIDs: []string{},
	}
	if len(events) == 0 {
		return result, nil
	}

	eventIDs := make([]string, 0, len(events))
	for _, ev := range events {
		eventIDs = append(eventIDs, ev.EventID)
	}

	existing, err := s.store.FilterExistingIDs(ctx, eventIDs)
	if err != nil {
		return Result{}, err
	}

	newEvents := make([]metrics.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := existing[ev.EventID]; ok {
			result.ExistingEventIDs = append(result.ExistingEventIDs, ev.EventID)
			continue
		}
		ev.Source = source
		newEvents = append(newEvents, ev)
		result.CreatedEventIDs = append(result.CreatedEventIDs, ev.EventID)
	}

	result.Processed = len(events)
	result.CreatedCount = len(result.CreatedEventIDs)
	result.ExistingCount = len(result.ExistingEventIDs)

	if len(newEvents) == 0 {
		return result, nil
	}

	span, err := metrics.DirtySpan(newEvents)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.IngestBatch(ctx, orgID, newEvents, span); err != nil {
		return Result{}, err
	}
	return result, nil
}
