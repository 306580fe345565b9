package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "opsboard/internal/masterdata/domain"
)

const defaultLocationsTable = "locations"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LocationRepository is a Postgres implementation for locations.
type LocationRepository struct {
	db    DBTX
	table string
}

// NewLocationRepository constructs a repository.
func NewLocationRepository(db DBTX, opts ...LocationOption) *LocationRepository {
	repo := &LocationRepository{db: db, table: defaultLocationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LocationOption configures the repository.
type LocationOption func(*LocationRepository)

// WithLocationTable overrides the default table name.
func WithLocationTable(table string) LocationOption {
	return func(repo *LocationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a location by id.
func (r *LocationRepository) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	if id == "" {
		return nil, errors.New("location repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, name, region, created_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var loc masterdata.Location
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&loc.ID,
		&loc.OrgID,
		&loc.Name,
		&loc.Region,
		&loc.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	loc.CreatedAt = loc.CreatedAt.UTC()
	return &loc, nil
}

// ListByOrg returns all locations belonging to an organization.
func (r *LocationRepository) ListByOrg(ctx context.Context, orgID string) ([]masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("location repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, name, region, created_at
FROM %s
WHERE org_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]masterdata.Location, 0)
	for rows.Next() {
		var loc masterdata.Location
		if err := rows.Scan(&loc.ID, &loc.OrgID, &loc.Name, &loc.Region, &loc.CreatedAt); err != nil {
			return nil, err
		}
		loc.CreatedAt = loc.CreatedAt.UTC()
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locations, nil
}

// Save upserts a location.
func (r *LocationRepository) Save(ctx context.Context, loc *masterdata.Location) error {
	if r == nil || r.db == nil {
		return errors.New("location repo: nil db")
	}
	if loc == nil {
		return errors.New("location repo: nil location")
	}
	if loc.ID == "" || loc.OrgID == "" {
		return errors.New("location repo: id and org id required")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	org_id,
	name,
	region
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	org_id = EXCLUDED.org_id,
	name = EXCLUDED.name,
	region = EXCLUDED.region`, r.table)

	_, err := r.db.ExecContext(ctx, query, loc.ID, loc.OrgID, loc.Name, loc.Region)
	return err
}
