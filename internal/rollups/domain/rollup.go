package rollups

import (
	"fmt"
	"time"

	metrics "opsboard/internal/metrics/domain"
)

// DailyRollup is the derived daily aggregate per (org, location, metric, day).
// It is only ever written by a full recompute; there is no incremental merge.
type DailyRollup struct {
	OrgID      string             `json:"orgId"`
	LocationID string             `json:"locationId"`
	MetricType metrics.MetricType `json:"metricType"`
	Date       time.Time          `json:"date"`
	Value      float64            `json:"value"`
	Avg7       float64            `json:"avg7"`
	Prior7Avg  float64            `json:"prior7Avg"`
}

// DailyTotals holds group-summed event values keyed by
// locationId|metricType|YYYY-MM-DD. It is the single in-memory table every
// derived value is computed from.
type DailyTotals map[string]float64

// TotalKey builds the daily totals key.
func TotalKey(locationID string, metricType metrics.MetricType, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s", locationID, metricType, day.Format("2006-01-02"))
}

// Add accumulates an event value into its day bucket.
func (t DailyTotals) Add(locationID string, metricType metrics.MetricType, ts time.Time, value float64) {
	t[TotalKey(locationID, metricType, metrics.UTCDay(ts))] += value
}

func (t DailyTotals) get(locationID string, metricType metrics.MetricType, day time.Time) float64 {
	return t[TotalKey(locationID, metricType, day)]
}

// BuildRollups computes dense rollup rows for every location x metric type x
// day in [start, end] inclusive. Missing days count as true zeros: avg7 and
// prior7Avg always divide by 7, so a week with two non-zero days is sum/7,
// not sum/2. Rows are emitted for every combination even when no events exist
// anywhere in range, guaranteeing a gap-free table for readers.
func BuildRollups(orgID string, locationIDs []string, totals DailyTotals, start, end time.Time) []DailyRollup {
	start = metrics.UTCDay(start)
	end = metrics.UTCDay(end)

	result := make([]DailyRollup, 0)
	for day := start; !day.After(end); day = metrics.AddDays(day, 1) {
		for _, locationID := range locationIDs {
			for _, metricType := range metrics.AllMetricTypes() {
				value := totals.get(locationID, metricType, day)

				var sum7 float64
				for i := 0; i < 7; i++ {
					sum7 += totals.get(locationID, metricType, metrics.AddDays(day, -i))
				}

				var sumPrior7 float64
				for i := 7; i < 14; i++ {
					sumPrior7 += totals.get(locationID, metricType, metrics.AddDays(day, -i))
				}

				result = append(result, DailyRollup{
					OrgID:      orgID,
					LocationID: locationID,
					MetricType: metricType,
					Date:       day,
					Value:      value,
					Avg7:       sum7 / 7,
					Prior7Avg:  sumPrior7 / 7,
				})
			}
		}
	}
	return result
}
