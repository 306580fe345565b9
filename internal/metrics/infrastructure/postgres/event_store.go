package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	metrics "opsboard/internal/metrics/domain"
)

const (
	defaultEventsTable = "metric_events"
	defaultQueueTable  = "rollup_recompute_queue"

	// Bulk inserts can be large; give them a deadline independent of the
	// caller's request timeout.
	defaultBulkTimeout = 2 * time.Minute
)

// EventStore is a Postgres implementation of the append-only event store.
type EventStore struct {
	db          *sql.DB
	eventsTable string
	queueTable  string
	bulkTimeout time.Duration
}

// NewEventStore constructs a store with default table names.
func NewEventStore(db *sql.DB, opts ...EventStoreOption) *EventStore {
	store := &EventStore{
		db:          db,
		eventsTable: defaultEventsTable,
		queueTable:  defaultQueueTable,
		bulkTimeout: defaultBulkTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// EventStoreOption configures the store.
type EventStoreOption func(*EventStore)

// WithEventsTable overrides the default events table name.
func WithEventsTable(table string) EventStoreOption {
	return func(store *EventStore) {
		if table != "" {
			store.eventsTable = table
		}
	}
}

// WithQueueTable overrides the default queue table name.
func WithQueueTable(table string) EventStoreOption {
	return func(store *EventStore) {
		if table != "" {
			store.queueTable = table
		}
	}
}

// WithBulkTimeout overrides the bulk write deadline.
func WithBulkTimeout(timeout time.Duration) EventStoreOption {
	return func(store *EventStore) {
		if timeout > 0 {
			store.bulkTimeout = timeout
		}
	}
}

// FilterExistingIDs returns which of the submitted event ids already exist.
func (s *EventStore) FilterExistingIDs(ctx context.Context, eventIDs []string) (map[string]struct{}, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("event store: nil db")
	}
	existing := make(map[string]struct{}, len(eventIDs))
	if len(eventIDs) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(eventIDs))
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT event_id
FROM %s
WHERE event_id IN (%s)`, s.eventsTable, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

// IngestBatch inserts new events and merges the dirty span into the tenant's
// queue entry inside a single transaction. Duplicate event ids are skipped at
// the storage layer as a second idempotence guard.
func (s *EventStore) IngestBatch(ctx context.Context, orgID string, events []metrics.Event, span metrics.Span) error {
	if s == nil || s.db == nil {
		return errors.New("event store: nil db")
	}
	if orgID == "" {
		return errors.New("event store: empty org id")
	}
	if len(events) == 0 {
		return nil
	}
	if span.MinDate.IsZero() || span.MaxDate.IsZero() {
		return errors.New("event store: invalid span")
	}

	ctx, cancel := context.WithTimeout(ctx, s.bulkTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
	event_id,
	org_id,
	location_id,
	ts,
	metric_type,
	value,
	source
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (event_id) DO NOTHING`, s.eventsTable)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.EventID == "" || ev.LocationID == "" || ev.Timestamp.IsZero() {
			_ = tx.Rollback()
			return errors.New("event store: invalid event")
		}
		if ev.OrgID != orgID {
			_ = tx.Rollback()
			return errors.New("event store: event org mismatch")
		}
		if _, err := stmt.ExecContext(
			ctx,
			ev.EventID,
			ev.OrgID,
			ev.LocationID,
			ev.Timestamp.UTC(),
			string(ev.MetricType),
			ev.Value,
			string(ev.Source),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	merge := fmt.Sprintf(`
INSERT INTO %s (org_id, min_date, max_date)
VALUES ($1, $2, $3)
ON CONFLICT (org_id)
DO UPDATE SET
	min_date = LEAST(%s.min_date, EXCLUDED.min_date),
	max_date = GREATEST(%s.max_date, EXCLUDED.max_date),
	updated_at = NOW()`, s.queueTable, s.queueTable, s.queueTable)

	if _, err := tx.ExecContext(ctx, merge, orgID, span.MinDate, span.MaxDate); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
