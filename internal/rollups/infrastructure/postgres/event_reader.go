package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	metrics "opsboard/internal/metrics/domain"
)

const defaultEventsTable = "metric_events"

// EventReader reads raw metric events for the recompute scan.
type EventReader struct {
	db    *sql.DB
	table string
}

// NewEventReader constructs a reader with the default table name.
func NewEventReader(db *sql.DB, opts ...EventReaderOption) *EventReader {
	reader := &EventReader{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// EventReaderOption configures the reader.
type EventReaderOption func(*EventReader)

// WithEventReaderTable overrides the default table name.
func WithEventReaderTable(table string) EventReaderOption {
	return func(reader *EventReader) {
		if table != "" {
			reader.table = table
		}
	}
}

// QueryRange returns events for an org within [start, endExclusive).
func (r *EventReader) QueryRange(ctx context.Context, orgID string, start, endExclusive time.Time) ([]metrics.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event reader: nil db")
	}
	if orgID == "" || start.IsZero() || endExclusive.IsZero() {
		return nil, errors.New("event reader: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT event_id, org_id, location_id, ts, metric_type, value, source
FROM %s
WHERE org_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID, start, endExclusive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]metrics.Event, 0)
	for rows.Next() {
		var (
			ev         metrics.Event
			metricType string
			source     string
		)
		if err := rows.Scan(&ev.EventID, &ev.OrgID, &ev.LocationID, &ev.Timestamp, &metricType, &ev.Value, &source); err != nil {
			return nil, err
		}
		ev.MetricType = metrics.MetricType(metricType)
		ev.Source = metrics.Source(source)
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
