package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"opsboard/internal/anomalies/application"
	anomalies "opsboard/internal/anomalies/domain"
	metrics "opsboard/internal/metrics/domain"
)

const defaultAnomaliesTable = "anomalies"

// AnomalyRepository is a Postgres implementation of the anomaly store.
type AnomalyRepository struct {
	db    *sql.DB
	table string
}

// NewAnomalyRepository constructs a repository.
func NewAnomalyRepository(db *sql.DB, opts ...Option) *AnomalyRepository {
	repo := &AnomalyRepository{db: db, table: defaultAnomaliesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*AnomalyRepository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *AnomalyRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListOpenKeys returns the dedup keys of every OPEN anomaly for the tenant.
func (r *AnomalyRepository) ListOpenKeys(ctx context.Context, orgID string) (map[string]struct{}, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("anomaly repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("anomaly repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT location_id, metric_type, rule
FROM %s
WHERE org_id = $1 AND status = $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID, string(anomalies.StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var locationID, metricType, rule string
		if err := rows.Scan(&locationID, &metricType, &rule); err != nil {
			return nil, err
		}
		keys[anomalies.DedupKey(locationID, metrics.MetricType(metricType), rule)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAll inserts detected anomalies in a single transaction.
func (r *AnomalyRepository) CreateAll(ctx context.Context, items []anomalies.Anomaly) error {
	if r == nil || r.db == nil {
		return errors.New("anomaly repo: nil db")
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, org_id, location_id, metric_type, rule, severity,
	value, threshold, status, action_item_id, detected_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12
)`, r.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.OrgID,
			item.LocationID,
			string(item.MetricType),
			item.Rule,
			string(item.Severity),
			item.Value,
			item.Threshold,
			string(item.Status),
			item.ActionItemID,
			item.DetectedAt.UTC(),
			item.UpdatedAt.UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID loads an anomaly. Returns (nil, nil) when absent.
func (r *AnomalyRepository) GetByID(ctx context.Context, id string) (*anomalies.Anomaly, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("anomaly repo: nil db")
	}
	if id == "" {
		return nil, errors.New("anomaly repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, location_id, metric_type, rule, severity,
	value, threshold, status, COALESCE(action_item_id, ''), detected_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	anomaly, err := scanAnomaly(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return anomaly, nil
}

// List returns the tenant's anomalies, newest first.
func (r *AnomalyRepository) List(ctx context.Context, orgID string, filter application.ListFilter) ([]anomalies.Anomaly, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("anomaly repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("anomaly repo: empty org id")
	}

	conditions := []string{"org_id = $1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
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
SELECT id, org_id, location_id, metric_type, rule, severity,
	value, threshold, status, COALESCE(action_item_id, ''), detected_at, updated_at
FROM %s
WHERE %s
ORDER BY detected_at DESC, id ASC`, r.table, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]anomalies.Anomaly, 0)
	for rows.Next() {
		anomaly, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *anomaly)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update mutates workflow fields of an anomaly.
func (r *AnomalyRepository) Update(ctx context.Context, id string, status anomalies.Status, actionItemID string, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("anomaly repo: nil db")
	}
	if id == "" {
		return errors.New("anomaly repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, action_item_id = NULLIF($3, ''), updated_at = $4
WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, id, string(status), actionItemID, updatedAt.UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return anomalies.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnomaly(row rowScanner) (*anomalies.Anomaly, error) {
	var anomaly anomalies.Anomaly
	var metricType, severity, status string
	if err := row.Scan(
		&anomaly.ID,
		&anomaly.OrgID,
		&anomaly.LocationID,
		&metricType,
		&anomaly.Rule,
		&severity,
		&anomaly.Value,
		&anomaly.Threshold,
		&status,
		&anomaly.ActionItemID,
		&anomaly.DetectedAt,
		&anomaly.UpdatedAt,
	); err != nil {
		return nil, err
	}
	anomaly.MetricType = metrics.MetricType(metricType)
	anomaly.Severity = anomalies.Severity(severity)
	anomaly.Status = anomalies.Status(status)
	anomaly.DetectedAt = anomaly.DetectedAt.UTC()
	anomaly.UpdatedAt = anomaly.UpdatedAt.UTC()
	return &anomaly, nil
}
