package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"opsboard/internal/anomalies/application"
	anomalies "opsboard/internal/anomalies/domain"
)

// AnomalyRepository is an in-memory anomaly store for tests.
type AnomalyRepository struct {
	mu    sync.RWMutex
	items map[string]anomalies.Anomaly
}

// NewAnomalyRepository constructs an empty repository.
func NewAnomalyRepository() *AnomalyRepository {
	return &AnomalyRepository{items: make(map[string]anomalies.Anomaly)}
}

// ListOpenKeys returns dedup keys of OPEN anomalies for the tenant.
func (r *AnomalyRepository) ListOpenKeys(_ context.Context, orgID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make(map[string]struct{})
	for _, item := range r.items {
		if item.OrgID != orgID || item.Status != anomalies.StatusOpen {
			continue
		}
		keys[anomalies.DedupKey(item.LocationID, item.MetricType, item.Rule)] = struct{}{}
	}
	return keys, nil
}

// CreateAll stores detected anomalies.
func (r *AnomalyRepository) CreateAll(_ context.Context, items []anomalies.Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		r.items[item.ID] = item
	}
	return nil
}

// GetByID loads an anomaly. Returns (nil, nil) when absent.
func (r *AnomalyRepository) GetByID(_ context.Context, id string) (*anomalies.Anomaly, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copied := item
	return &copied, nil
}

// List returns the tenant's anomalies, newest first.
func (r *AnomalyRepository) List(_ context.Context, orgID string, filter application.ListFilter) ([]anomalies.Anomaly, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var locationSet map[string]struct{}
	if len(filter.LocationIDs) > 0 {
		locationSet = make(map[string]struct{}, len(filter.LocationIDs))
		for _, id := range filter.LocationIDs {
			locationSet[id] = struct{}{}
		}
	}

	out := make([]anomalies.Anomaly, 0)
	for _, item := range r.items {
		if item.OrgID != orgID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if locationSet != nil {
			if _, ok := locationSet[item.LocationID]; !ok {
				continue
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update mutates workflow fields of a stored anomaly.
func (r *AnomalyRepository) Update(_ context.Context, id string, status anomalies.Status, actionItemID string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return anomalies.ErrNotFound
	}
	item.Status = status
	item.ActionItemID = actionItemID
	item.UpdatedAt = updatedAt
	r.items[id] = item
	return nil
}

// Count reports stored anomalies for a tenant.
func (r *AnomalyRepository) Count(orgID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, item := range r.items {
		if item.OrgID == orgID {
			n++
		}
	}
	return n
}
