package masterdata

import (
	"context"
	"time"
)

// Organization is a tenant.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Location is a physical site belonging to an organization.
type Location struct {
	ID        string
	OrgID     string
	Name      string
	Region    string
	CreatedAt time.Time
}

// LocationRepository provides location lookups.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*Location, error)
	ListByOrg(ctx context.Context, orgID string) ([]Location, error)
}

// LocationIDs extracts the ids of a location list.
func LocationIDs(locations []Location) []string {
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		ids = append(ids, loc.ID)
	}
	return ids
}
