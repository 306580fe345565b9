package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

// RollupRepository is an in-memory rollup store for demo/testing.
type RollupRepository struct {
	mu   sync.RWMutex
	data map[string]rollups.DailyRollup
}

// NewRollupRepository constructs a repository.
func NewRollupRepository() *RollupRepository {
	return &RollupRepository{data: make(map[string]rollups.DailyRollup)}
}

func rollupKey(row rollups.DailyRollup) string {
	return fmt.Sprintf("%s|%s|%s|%s", row.OrgID, row.LocationID, row.MetricType, row.Date.Format("2006-01-02"))
}

// UpsertAll writes every row, overwriting prior values.
func (r *RollupRepository) UpsertAll(ctx context.Context, rows []rollups.DailyRollup) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row.OrgID == "" || row.LocationID == "" || row.Date.IsZero() {
			return errors.New("memory rollup repo: invalid rollup row")
		}
		r.data[rollupKey(row)] = row
	}
	return nil
}

// Get returns one rollup row, or nil.
func (r *RollupRepository) Get(orgID, locationID string, metricType metrics.MetricType, day time.Time) *rollups.DailyRollup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.data[rollupKey(rollups.DailyRollup{
		OrgID:      orgID,
		LocationID: locationID,
		MetricType: metricType,
		Date:       metrics.UTCDay(day),
	})]
	if !ok {
		return nil
	}
	return &row
}

// ListSince returns rollups dated on or after the cutoff, ordered by date ascending.
func (r *RollupRepository) ListSince(ctx context.Context, orgID string, cutoff time.Time) ([]rollups.DailyRollup, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]rollups.DailyRollup, 0)
	for _, row := range r.data {
		if row.OrgID != orgID {
			continue
		}
		if row.Date.Before(cutoff) {
			continue
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ListRange returns rollups in [start, end] for the given locations and
// optional metric type, ordered by date ascending.
func (r *RollupRepository) ListRange(ctx context.Context, orgID string, locationIDs []string, metricType metrics.MetricType, start, end time.Time) ([]rollups.DailyRollup, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var locationSet map[string]struct{}
	if len(locationIDs) > 0 {
		locationSet = make(map[string]struct{}, len(locationIDs))
		for _, id := range locationIDs {
			locationSet[id] = struct{}{}
		}
	}
	startDay := metrics.UTCDay(start)
	endDay := metrics.UTCDay(end)

	result := make([]rollups.DailyRollup, 0)
	for _, row := range r.data {
		if row.OrgID != orgID {
			continue
		}
		if locationSet != nil {
			if _, ok := locationSet[row.LocationID]; !ok {
				continue
			}
		}
		if metricType != "" && row.MetricType != metricType {
			continue
		}
		if row.Date.Before(startDay) || row.Date.After(endDay) {
			continue
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].LocationID != result[j].LocationID {
			return result[i].LocationID < result[j].LocationID
		}
		return result[i].MetricType < result[j].MetricType
	})
	return result, nil
}

// Count returns the number of stored rows.
func (r *RollupRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
