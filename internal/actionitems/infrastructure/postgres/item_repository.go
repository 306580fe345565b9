package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"opsboard/internal/actionitems/application"
	actionitems "opsboard/internal/actionitems/domain"
)

const defaultItemsTable = "action_items"

// ItemRepository is a Postgres implementation of the action item store.
type ItemRepository struct {
	db    *sql.DB
	table string
}

// NewItemRepository constructs a repository.
func NewItemRepository(db *sql.DB, opts ...Option) *ItemRepository {
	repo := &ItemRepository{db: db, table: defaultItemsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*ItemRepository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *ItemRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a new action item.
func (r *ItemRepository) Create(ctx context.Context, item *actionitems.Item) error {
	if r == nil || r.db == nil {
		return errors.New("action item repo: nil db")
	}
	if item == nil {
		return errors.New("action item repo: nil item")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, org_id, location_id, anomaly_id, title, notes, assignee,
	status, created_at, updated_at
) VALUES (
	$1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,$8,$9,$10
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.OrgID,
		item.LocationID,
		item.AnomalyID,
		item.Title,
		item.Notes,
		item.Assignee,
		string(item.Status),
		item.CreatedAt.UTC(),
		item.UpdatedAt.UTC(),
	)
	return err
}

// GetByID loads an action item. Returns (nil, nil) when absent.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*actionitems.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("action item repo: nil db")
	}
	if id == "" {
		return nil, errors.New("action item repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, COALESCE(location_id, ''), COALESCE(anomaly_id, ''), title, notes, assignee,
	status, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var item actionitems.Item
	var status string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.OrgID,
		&item.LocationID,
		&item.AnomalyID,
		&item.Title,
		&item.Notes,
		&item.Assignee,
		&status,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	item.Status = actionitems.Status(status)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

// List returns the tenant's action items, newest first.
func (r *ItemRepository) List(ctx context.Context, orgID string, filter application.ListFilter) ([]actionitems.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("action item repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("action item repo: empty org id")
	}

	conditions := []string{"org_id = $1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Assignee != "" {
		args = append(args, filter.Assignee)
		conditions = append(conditions, fmt.Sprintf("assignee = $%d", len(args)))
	}
	if len(filter.LocationIDs) > 0 {
		placeholders := make([]string, 0, len(filter.LocationIDs))
		for _, id := range filter.LocationIDs {
			args = append(args, id)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("location_id IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := fmt.Sprintf(`
SELECT id, org_id, COALESCE(location_id, ''), COALESCE(anomaly_id, ''), title, notes, assignee,
	status, created_at, updated_at
FROM %s
WHERE %s
ORDER BY created_at DESC, id ASC`, r.table, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]actionitems.Item, 0)
	for rows.Next() {
		var item actionitems.Item
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.OrgID,
			&item.LocationID,
			&item.AnomalyID,
			&item.Title,
			&item.Notes,
			&item.Assignee,
			&status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = actionitems.Status(status)
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update rewrites the mutable fields of an action item.
func (r *ItemRepository) Update(ctx context.Context, item *actionitems.Item) error {
	if r == nil || r.db == nil {
		return errors.New("action item repo: nil db")
	}
	if item == nil || item.ID == "" {
		return errors.New("action item repo: item id required")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, assignee = $3, notes = $4, updated_at = $5
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query,
		item.ID, string(item.Status), item.Assignee, item.Notes, item.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return actionitems.ErrNotFound
	}
	return nil
}
