package anomalies

import (
	"errors"
	"fmt"
	"time"

	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

// Severity grades a detected anomaly.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status tracks the ops workflow state of an anomaly.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusClosed     Status = "CLOSED"
)

// NormalizeStatus validates a status string.
func NormalizeStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusOpen, StatusInProgress, StatusClosed:
		return Status(value), true
	default:
		return "", false
	}
}

// ErrNotFound indicates the anomaly does not exist.
var ErrNotFound = errors.New("anomaly not found")

// Anomaly records a detected drop in rollup data. It is never auto-deleted;
// status and the action item link are mutated by the ops workflow.
type Anomaly struct {
	ID           string             `json:"id"`
	OrgID        string             `json:"orgId"`
	LocationID   string             `json:"locationId"`
	MetricType   metrics.MetricType `json:"metricType"`
	Rule         string             `json:"rule"`
	Severity     Severity           `json:"severity"`
	Value        float64            `json:"value"`
	Threshold    float64            `json:"threshold"`
	Status       Status             `json:"status"`
	ActionItemID string             `json:"actionItemId,omitempty"`
	DetectedAt   time.Time          `json:"detectedAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// DedupKey identifies the open-anomaly dedup boundary: at most one OPEN
// anomaly may exist per (location, metric type, rule).
func DedupKey(locationID string, metricType metrics.MetricType, rule string) string {
	return fmt.Sprintf("%s|%s|%s", locationID, metricType, rule)
}

const (
	RuleSuddenDropAvg7   = "sudden_drop_avg7"
	RuleSuddenDropPrior7 = "sudden_drop_prior7"
)

// Rule pairs a rule identifier with its baseline extractor.
type Rule struct {
	Key      string
	Baseline func(rollups.DailyRollup) float64
}

// Rules returns the configured drop-detection rule set.
func Rules() []Rule {
	return []Rule{
		{Key: RuleSuddenDropAvg7, Baseline: func(r rollups.DailyRollup) float64 { return r.Avg7 }},
		{Key: RuleSuddenDropPrior7, Baseline: func(r rollups.DailyRollup) float64 { return r.Prior7Avg }},
	}
}

// PercentDrop computes how far value fell below baseline, in percent.
// The caller must skip zero baselines.
func PercentDrop(baseline, value float64) float64 {
	return (baseline - value) / baseline * 100
}

// SeverityFromPercentDrop grades a drop. The tiers sit on the same
// percentDrop scale as the trigger gate, so anything that triggers at all
// grades HIGH today; the tiers are kept as-is to preserve observable
// behavior. CRITICAL is reserved for future rules.
func SeverityFromPercentDrop(pct float64) Severity {
	if pct > 5 {
		return SeverityHigh
	}
	if pct > 2 {
		return SeverityMedium
	}
	return SeverityLow
}
