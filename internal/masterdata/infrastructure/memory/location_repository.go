package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	masterdata "opsboard/internal/masterdata/domain"
)

// LocationRepository is an in-memory repository for demo/testing.
type LocationRepository struct {
	mu   sync.RWMutex
	data map[string]masterdata.Location
}

// NewLocationRepository constructs a repository.
func NewLocationRepository() *LocationRepository {
	return &LocationRepository{data: make(map[string]masterdata.Location)}
}

// Get loads a location by id.
func (r *LocationRepository) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory location repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

// ListByOrg returns locations belonging to an organization, ordered by id.
func (r *LocationRepository) ListByOrg(ctx context.Context, orgID string) ([]masterdata.Location, error) {
	_ = ctx
	if orgID == "" {
		return nil, errors.New("memory location repo: empty org id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	locations := make([]masterdata.Location, 0)
	for _, loc := range r.data {
		if loc.OrgID == orgID {
			locations = append(locations, loc)
		}
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations, nil
}

// Save upserts a location.
func (r *LocationRepository) Save(ctx context.Context, loc *masterdata.Location) error {
	_ = ctx
	if loc == nil {
		return errors.New("memory location repo: nil location")
	}
	if loc.ID == "" || loc.OrgID == "" {
		return errors.New("memory location repo: id and org id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[loc.ID] = *loc
	return nil
}
