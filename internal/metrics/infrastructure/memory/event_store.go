package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

// EventStore is an in-memory event store for demo/testing. It mirrors the
// Postgres store's idempotence semantics including the queue span merge.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]metrics.Event
	queue  map[string]metrics.Span
}

// NewEventStore constructs a store.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string]metrics.Event),
		queue:  make(map[string]metrics.Span),
	}
}

// FilterExistingIDs returns which of the submitted event ids already exist.
func (s *EventStore) FilterExistingIDs(ctx context.Context, eventIDs []string) (map[string]struct{}, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		if _, ok := s.events[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// IngestBatch inserts new events and merges the span into the org's queue entry.
func (s *EventStore) IngestBatch(ctx context.Context, orgID string, events []metrics.Event, span metrics.Span) error {
	_ = ctx
	if orgID == "" {
		return errors.New("memory event store: empty org id")
	}
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.OrgID != orgID {
			return errors.New("memory event store: event org mismatch")
		}
		if _, ok := s.events[ev.EventID]; ok {
			continue
		}
		s.events[ev.EventID] = ev
	}
	if entry, ok := s.queue[orgID]; ok {
		s.queue[orgID] = entry.Union(span)
	} else {
		s.queue[orgID] = span
	}
	return nil
}

// QueryRange returns events for an org within [start, endExclusive).
func (s *EventStore) QueryRange(ctx context.Context, orgID string, start, endExclusive time.Time) ([]metrics.Event, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]metrics.Event, 0)
	for _, ev := range s.events {
		if ev.OrgID != orgID {
			continue
		}
		if ev.Timestamp.Before(start) || !ev.Timestamp.Before(endExclusive) {
			continue
		}
		result = append(result, ev)
	}
	return result, nil
}

// QueueEntry returns the pending span for an org, if any.
func (s *EventStore) QueueEntry(orgID string) (metrics.Span, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	span, ok := s.queue[orgID]
	return span, ok
}

// Get returns the pending queue entry for an org, or nil.
func (s *EventStore) Get(ctx context.Context, orgID string) (*rollups.QueueEntry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	span, ok := s.queue[orgID]
	if !ok {
		return nil, nil
	}
	return &rollups.QueueEntry{OrgID: orgID, MinDate: span.MinDate, MaxDate: span.MaxDate}, nil
}

// GetAny returns an arbitrary pending queue entry, or nil.
func (s *EventStore) GetAny(ctx context.Context) (*rollups.QueueEntry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgIDs := make([]string, 0, len(s.queue))
	for orgID := range s.queue {
		orgIDs = append(orgIDs, orgID)
	}
	if len(orgIDs) == 0 {
		return nil, nil
	}
	sort.Strings(orgIDs)
	span := s.queue[orgIDs[0]]
	return &rollups.QueueEntry{OrgID: orgIDs[0], MinDate: span.MinDate, MaxDate: span.MaxDate}, nil
}

// DeleteMatching removes the entry only if its span still matches exactly,
// so a concurrently widened entry survives.
func (s *EventStore) DeleteMatching(ctx context.Context, entry rollups.QueueEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	span, ok := s.queue[entry.OrgID]
	if !ok {
		return nil
	}
	if span.MinDate.Equal(entry.MinDate) && span.MaxDate.Equal(entry.MaxDate) {
		delete(s.queue, entry.OrgID)
	}
	return nil
}

// EventCount returns the number of stored events.
func (s *EventStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
