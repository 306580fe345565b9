package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

const defaultQueueTable = "rollup_recompute_queue"

// QueueRepository is a Postgres implementation of the recompute queue.
type QueueRepository struct {
	db    *sql.DB
	table string
}

// NewQueueRepository constructs a repository with the default table name.
func NewQueueRepository(db *sql.DB, opts ...QueueOption) *QueueRepository {
	repo := &QueueRepository{db: db, table: defaultQueueTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// QueueOption configures the repository.
type QueueOption func(*QueueRepository)

// WithQueueTable overrides the default table name.
func WithQueueTable(table string) QueueOption {
	return func(repo *QueueRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get returns the pending entry for an org, or nil.
func (r *QueueRepository) Get(ctx context.Context, orgID string) (*rollups.QueueEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("queue repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("queue repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT org_id, min_date, max_date
FROM %s
WHERE org_id = $1
LIMIT 1`, r.table)

	return r.scanEntry(r.db.QueryRowContext(ctx, query, orgID))
}

// GetAny returns an arbitrary pending entry, or nil.
func (r *QueueRepository) GetAny(ctx context.Context) (*rollups.QueueEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("queue repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT org_id, min_date, max_date
FROM %s
ORDER BY org_id ASC
LIMIT 1`, r.table)

	return r.scanEntry(r.db.QueryRowContext(ctx, query))
}

// Merge upsert-merges a dirty span into the org's entry (union of ranges).
func (r *QueueRepository) Merge(ctx context.Context, orgID string, span metrics.Span) error {
	if r == nil || r.db == nil {
		return errors.New("queue repo: nil db")
	}
	if orgID == "" {
		return errors.New("queue repo: empty org id")
	}
	if span.MinDate.IsZero() || span.MaxDate.IsZero() {
		return errors.New("queue repo: invalid span")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (org_id, min_date, max_date)
VALUES ($1, $2, $3)
ON CONFLICT (org_id)
DO UPDATE SET
	min_date = LEAST(%s.min_date, EXCLUDED.min_date),
	max_date = GREATEST(%s.max_date, EXCLUDED.max_date),
	updated_at = NOW()`, r.table, r.table, r.table)

	_, err := r.db.ExecContext(ctx, query, orgID, span.MinDate, span.MaxDate)
	return err
}

// DeleteMatching removes the entry only when its span still equals the one
// that was processed, so an entry widened by concurrent ingestion survives.
func (r *QueueRepository) DeleteMatching(ctx context.Context, entry rollups.QueueEntry) error {
	if r == nil || r.db == nil {
		return errors.New("queue repo: nil db")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
DELETE FROM %s
WHERE org_id = $1
	AND min_date = $2
	AND max_date = $3`, r.table)

	_, err := r.db.ExecContext(ctx, query, entry.OrgID, entry.MinDate, entry.MaxDate)
	return err
}

func (r *QueueRepository) scanEntry(row *sql.Row) (*rollups.QueueEntry, error) {
	var entry rollups.QueueEntry
	if err := row.Scan(&entry.OrgID, &entry.MinDate, &entry.MaxDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	entry.MinDate = entry.MinDate.UTC()
	entry.MaxDate = entry.MaxDate.UTC()
	return &entry, nil
}
