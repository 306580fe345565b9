package metrics

import (
	"fmt"
	"math"
	"time"
)

// EventInput is an unvalidated candidate event as supplied by intake
// collaborators (JSON bodies, CSV rows, seed runs).
type EventInput struct {
	EventID    string    `json:"eventId"`
	OrgID      string    `json:"orgId"`
	LocationID string    `json:"locationId"`
	Timestamp  time.Time `json:"timestamp"`
	MetricType string    `json:"metricType"`
	Value      float64   `json:"value"`
}

// ValidationError describes why one batch item was rejected.
type ValidationError struct {
	Index   int    `json:"index"`
	EventID string `json:"eventId,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("event %d (%s): %s", e.Index, e.EventID, e.Message)
}

// ValidateBatch checks every candidate against the declared tenant and the
// metric type enum. It reports per-item errors instead of failing fast; an
// event whose orgId differs from the declared tenant is a hard validation
// error, never silently dropped.
func ValidateBatch(inputs []EventInput, orgID string) ([]Event, []ValidationError) {
	valid := make([]Event, 0, len(inputs))
	var errs []ValidationError

	for i, in := range inputs {
		if in.EventID == "" {
			errs = append(errs, ValidationError{Index: i, Message: "eventId is required"})
			continue
		}
		if in.LocationID == "" {
			errs = append(errs, ValidationError{Index: i, EventID: in.EventID, Message: "locationId is required"})
			continue
		}
		if in.Timestamp.IsZero() {
			errs = append(errs, ValidationError{Index: i, EventID: in.EventID, Message: "timestamp is required"})
			continue
		}
		if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
			errs = append(errs, ValidationError{Index: i, EventID: in.EventID, Message: "value must be a real number"})
			continue
		}
		metricType, ok := ParseMetricType(in.MetricType)
		if !ok {
			errs = append(errs, ValidationError{Index: i, EventID: in.EventID, Message: fmt.Sprintf("unknown metric type %q", in.MetricType)})
			continue
		}
		if in.OrgID != orgID {
			errs = append(errs, ValidationError{Index: i, EventID: in.EventID, Message: "orgId does not match acting tenant"})
			continue
		}

		valid = append(valid, Event{
			EventID:    in.EventID,
			OrgID:      in.OrgID,
			LocationID: in.LocationID,
			Timestamp:  in.Timestamp.UTC(),
			MetricType: metricType,
			Value:      in.Value,
		})
	}
	return valid, errs
}
