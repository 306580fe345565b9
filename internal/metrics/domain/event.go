package metrics

import (
	"errors"
	"strings"
	"time"
)

// MetricType enumerates the business metrics tracked per location.
type MetricType string

const (
	MetricRevenue         MetricType = "revenue"
	MetricOrders          MetricType = "orders"
	MetricFootfall        MetricType = "footfall"
	MetricDowntimeMinutes MetricType = "downtime_minutes"
	MetricUnitsProduced   MetricType = "units_produced"
	MetricTicketsOpened   MetricType = "tickets_opened"
	MetricTicketsClosed   MetricType = "tickets_closed"
)

// AllMetricTypes returns the closed metric type set in a stable order.
func AllMetricTypes() []MetricType {
	return []MetricType{
		MetricRevenue,
		MetricOrders,
		MetricFootfall,
		MetricDowntimeMinutes,
		MetricUnitsProduced,
		MetricTicketsOpened,
		MetricTicketsClosed,
	}
}

// ParseMetricType normalizes a metric type string case-insensitively.
func ParseMetricType(value string) (MetricType, bool) {
	switch MetricType(strings.ToLower(strings.TrimSpace(value))) {
	case MetricRevenue:
		return MetricRevenue, true
	case MetricOrders:
		return MetricOrders, true
	case MetricFootfall:
		return MetricFootfall, true
	case MetricDowntimeMinutes:
		return MetricDowntimeMinutes, true
	case MetricUnitsProduced:
		return MetricUnitsProduced, true
	case MetricTicketsOpened:
		return MetricTicketsOpened, true
	case MetricTicketsClosed:
		return MetricTicketsClosed, true
	default:
		return "", false
	}
}

// Source records event provenance. It has no behavioral effect.
type Source string

const (
	SourceAPI  Source = "API"
	SourceCSV  Source = "CSV"
	SourceSeed Source = "SEED"
)

// Event is an immutable raw metric fact. EventID is the caller-supplied
// idempotency key; re-submission with the same id is a no-op.
type Event struct {
	EventID    string
	OrgID      string
	LocationID string
	Timestamp  time.Time
	MetricType MetricType
	Value      float64
	Source     Source
}

// Span is an inclusive UTC-day range.
type Span struct {
	MinDate time.Time
	MaxDate time.Time
}

// Union widens the span to cover other. Taking min/max is commutative, so
// concurrent merges are safe under any interleaving.
func (s Span) Union(other Span) Span {
	merged := s
	if other.MinDate.Before(merged.MinDate) {
		merged.MinDate = other.MinDate
	}
	if other.MaxDate.After(merged.MaxDate) {
		merged.MaxDate = other.MaxDate
	}
	return merged
}

// RecomputeLookbackDays is how far past the newest event the dirty span must
// extend so every rollup whose prior-7 window touches the new events gets
// recomputed.
const RecomputeLookbackDays = 13

// UTCDay truncates an instant to its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a UTC day by a number of days.
func AddDays(day time.Time, days int) time.Time {
	return day.AddDate(0, 0, days)
}

// DirtySpan computes the recompute span covering a set of events:
// utcDay(min timestamp) .. utcDay(max timestamp)+13d.
func DirtySpan(events []Event) (Span, error) {
	if len(events) == 0 {
		return Span{}, errors.New("metrics: no events for span")
	}
	minTS := events[0].Timestamp
	maxTS := events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(minTS) {
			minTS = ev.Timestamp
		}
		if ev.Timestamp.After(maxTS) {
			maxTS = ev.Timestamp
		}
	}
	return Span{
		MinDate: UTCDay(minTS),
		MaxDate: AddDays(UTCDay(maxTS), RecomputeLookbackDays),
	}, nil
}
