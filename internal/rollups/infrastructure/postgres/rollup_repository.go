package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

const defaultRollupsTable = "daily_metric_rollups"

// RollupRepository is a Postgres implementation for daily rollups.
type RollupRepository struct {
	db    *sql.DB
	table string
}

// NewRollupRepository constructs a repository with the default table name.
func NewRollupRepository(db *sql.DB, opts ...RollupOption) *RollupRepository {
	repo := &RollupRepository{db: db, table: defaultRollupsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RollupOption configures the repository.
type RollupOption func(*RollupRepository)

// WithRollupTable overrides the default table name.
func WithRollupTable(table string) RollupOption {
	return func(repo *RollupRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// UpsertAll writes every rollup row with full overwrite semantics, keyed by
// the composite (org_id, location_id, date, metric_type).
func (r *RollupRepository) UpsertAll(ctx context.Context, rows []rollups.DailyRollup) error {
	if r == nil || r.db == nil {
		return errors.New("rollup repo: nil db")
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	org_id,
	location_id,
	metric_type,
	date,
	value,
	avg7,
	prior7_avg
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (org_id, location_id, date, metric_type)
DO UPDATE SET
	value = EXCLUDED.value,
	avg7 = EXCLUDED.avg7,
	prior7_avg = EXCLUDED.prior7_avg,
	updated_at = NOW()`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if row.OrgID == "" || row.LocationID == "" || row.Date.IsZero() {
			_ = tx.Rollback()
			return errors.New("rollup repo: invalid rollup row")
		}
		if _, err := stmt.ExecContext(
			ctx,
			row.OrgID,
			row.LocationID,
			string(row.MetricType),
			row.Date,
			row.Value,
			row.Avg7,
			row.Prior7Avg,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListFilter narrows rollup reads.
type ListFilter struct {
	LocationIDs []string
	MetricType  metrics.MetricType
	StartDate   time.Time
	EndDate     time.Time
}

// List returns rollups for an org matching the filter, ordered by
// location, metric type, then date descending.
func (r *RollupRepository) List(ctx context.Context, orgID string, filter ListFilter) ([]rollups.DailyRollup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rollup repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("rollup repo: empty org id")
	}

	conditions := []string{"org_id = $1"}
	args := []any{orgID}

	if len(filter.LocationIDs) > 0 {
		placeholders := make([]string, len(filter.LocationIDs))
		for i, id := range filter.LocationIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("location_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.MetricType != "" {
		args = append(args, string(filter.MetricType))
		conditions = append(conditions, fmt.Sprintf("metric_type = $%d", len(args)))
	}
	if !filter.StartDate.IsZero() {
		args = append(args, metrics.UTCDay(filter.StartDate))
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.EndDate.IsZero() {
		args = append(args, metrics.UTCDay(filter.EndDate))
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
SELECT org_id, location_id, metric_type, date, value, avg7, prior7_avg
FROM %s
WHERE %s
ORDER BY location_id ASC, metric_type ASC, date DESC`, r.table, strings.Join(conditions, " AND "))

	return r.queryRollups(ctx, query, args...)
}

// ListRange returns rollups in [start, end] for the given locations and
// optional metric type. A nil location list means every location of the org.
func (r *RollupRepository) ListRange(ctx context.Context, orgID string, locationIDs []string, metricType metrics.MetricType, start, end time.Time) ([]rollups.DailyRollup, error) {
	return r.List(ctx, orgID, ListFilter{
		LocationIDs: locationIDs,
		MetricType:  metricType,
		StartDate:   start,
		EndDate:     end,
	})
}

// ListSince returns rollups dated on or after the cutoff, ordered by date
// ascending. Used by the anomaly detector's trailing-window scan.
func (r *RollupRepository) ListSince(ctx context.Context, orgID string, cutoff time.Time) ([]rollups.DailyRollup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rollup repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("rollup repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT org_id, location_id, metric_type, date, value, avg7, prior7_avg
FROM %s
WHERE org_id = $1
	AND date >= $2
ORDER BY date ASC`, r.table)

	return r.queryRollups(ctx, query, orgID, cutoff)
}

func (r *RollupRepository) queryRollups(ctx context.Context, query string, args ...any) ([]rollups.DailyRollup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]rollups.DailyRollup, 0)
	for rows.Next() {
		var (
			row        rollups.DailyRollup
			metricType string
		)
		if err := rows.Scan(
			&row.OrgID,
			&row.LocationID,
			&metricType,
			&row.Date,
			&row.Value,
			&row.Avg7,
			&row.Prior7Avg,
		); err != nil {
			return nil, err
		}
		row.MetricType = metrics.MetricType(metricType)
		row.Date = row.Date.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
