package rollups

import (
	"errors"
	"time"

	metrics "opsboard/internal/metrics/domain"
)

// ErrQueueEmpty indicates no pending recompute work.
var ErrQueueEmpty = errors.New("rollups: queue empty")

// QueueEntry is the single pending work item per tenant: the minimal
// inclusive UTC-day span whose rollups are stale.
type QueueEntry struct {
	OrgID   string
	MinDate time.Time
	MaxDate time.Time
}

// Validate checks entry invariants.
func (e QueueEntry) Validate() error {
	if e.OrgID == "" {
		return errors.New("queue entry: empty org id")
	}
	if e.MinDate.IsZero() || e.MaxDate.IsZero() {
		return errors.New("queue entry: empty span")
	}
	if e.MaxDate.Before(e.MinDate) {
		return errors.New("queue entry: max before min")
	}
	return nil
}

// Merge widens the entry to the union of its span and the incoming one.
// Entries are only ever widened, never narrowed.
func (e QueueEntry) Merge(span metrics.Span) QueueEntry {
	merged := e
	if span.MinDate.Before(merged.MinDate) {
		merged.MinDate = span.MinDate
	}
	if span.MaxDate.After(merged.MaxDate) {
		merged.MaxDate = span.MaxDate
	}
	return merged
}
