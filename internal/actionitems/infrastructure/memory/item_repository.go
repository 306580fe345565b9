package memory

import (
	"context"
	"sort"
	"sync"

	"opsboard/internal/actionitems/application"
	actionitems "opsboard/internal/actionitems/domain"
)

// ItemRepository is an in-memory action item store for tests.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[string]actionitems.Item
}

// NewItemRepository constructs an empty repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[string]actionitems.Item)}
}

// Create stores a new action item.
func (r *ItemRepository) Create(_ context.Context, item *actionitems.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = *item
	return nil
}

// GetByID loads an action item. Returns (nil, nil) when absent.
func (r *ItemRepository) GetByID(_ context.Context, id string) (*actionitems.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copied := item
	return &copied, nil
}

// List returns the tenant's action items, newest first.
func (r *ItemRepository) List(_ context.Context, orgID string, filter application.ListFilter) ([]actionitems.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var locationSet map[string]struct{}
	if len(filter.LocationIDs) > 0 {
		locationSet = make(map[string]struct{}, len(filter.LocationIDs))
		for _, id := range filter.LocationIDs {
			locationSet[id] = struct{}{}
		}
	}

	out := make([]actionitems.Item, 0)
	for _, item := range r.items {
		if item.OrgID != orgID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && item.Assignee != filter.Assignee {
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
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update rewrites a stored action item.
func (r *ItemRepository) Update(_ context.Context, item *actionitems.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return actionitems.ErrNotFound
	}
	r.items[item.ID] = *item
	return nil
}
