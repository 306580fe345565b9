package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	anomalies "opsboard/internal/anomalies/domain"
	masterdata "opsboard/internal/masterdata/domain"
	"opsboard/internal/observability/metrics"
	rollups "opsboard/internal/rollups/domain"
)

// RollupReader loads rollups for the trailing-window scan.
type RollupReader interface {
	ListSince(ctx context.Context, orgID string, cutoff time.Time) ([]rollups.DailyRollup, error)
}

// AnomalyWriter persists detected anomalies and exposes the open-dedup keys.
type AnomalyWriter interface {
	ListOpenKeys(ctx context.Context, orgID string) (map[string]struct{}, error)
	CreateAll(ctx context.Context, items []anomalies.Anomaly) error
}

// AnomalyNotifier publishes newly created anomalies.
type AnomalyNotifier interface {
	Notify(ctx context.Context, anomaly anomalies.Anomaly)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Detector scans recent rollups for sudden drops against trailing baselines.
// It is a "recent state" scan over the trailing window, not a historical
// re-scan, regardless of what range was just recomputed.
type Detector struct {
	rollups   RollupReader
	locations masterdata.LocationRepository
	store     AnomalyWriter
	cfg       RuleConfig
	notifier  AnomalyNotifier
	clock     Clock
}

// DetectorOption customizes the detector.
type DetectorOption func(*Detector)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AnomalyNotifier) DetectorOption {
	return func(d *Detector) {
		d.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) DetectorOption {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDetector constructs a detector.
func NewDetector(rollupReader RollupReader, locations masterdata.LocationRepository, store AnomalyWriter, cfg RuleConfig, opts ...DetectorOption) (*Detector, error) {
	if rollupReader == nil {
		return nil, errors.New("detector: nil rollup reader")
	}
	if locations == nil {
		return nil, errors.New("detector: nil location repository")
	}
	if store == nil {
		return nil, errors.New("detector: nil anomaly store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	detector := &Detector{
		rollups:   rollupReader,
		locations: locations,
		store:     store,
		cfg:       cfg,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(detector)
	}
	return detector, nil
}

// Detect scans the trailing window of rollups, suppresses conditions that
// already have an OPEN anomaly, and bulk-creates the rest. Returns the number
// created. Rollups pointing at locations the tenant no longer owns are
// filtered out.
func (d *Detector) Detect(ctx context.Context, orgID string) (int, error) {
	if d == nil {
		return 0, errors.New("detector: nil detector")
	}
	if orgID == "" {
		return 0, errors.New("detector: empty org id")
	}

	now := d.clock.Now().UTC()
	cutoff := now.AddDate(0, 0, -d.cfg.WindowDays)

	locations, err := d.locations.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}
	locationSet := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		locationSet[loc.ID] = struct{}{}
	}

	recent, err := d.rollups.ListSince(ctx, orgID, cutoff)
	if err != nil {
		return 0, err
	}
	if len(recent) == 0 {
		return 0, nil
	}

	openKeys, err := d.store.ListOpenKeys(ctx, orgID)
	if err != nil {
		return 0, err
	}

	var toCreate []anomalies.Anomaly
	for _, rollup := range recent {
		if _, ok := locationSet[rollup.LocationID]; !ok {
			continue
		}
		for _, rule := range anomalies.Rules() {
			baseline := rule.Baseline(rollup)
			if baseline == 0 {
				continue
			}
			pct := anomalies.PercentDrop(baseline, rollup.Value)
			if pct <= d.cfg.TriggerPercent {
				continue
			}

			key := anomalies.DedupKey(rollup.LocationID, rollup.MetricType, rule.Key)
			if _, exists := openKeys[key]; exists {
				continue
			}
			openKeys[key] = struct{}{}

			toCreate = append(toCreate, anomalies.Anomaly{
				ID:         uuid.NewString(),
				OrgID:      orgID,
				LocationID: rollup.LocationID,
				MetricType: rollup.MetricType,
				Rule:       rule.Key,
				Severity:   anomalies.SeverityFromPercentDrop(pct),
				Value:      rollup.Value,
				Threshold:  baseline,
				Status:     anomalies.StatusOpen,
				DetectedAt: now,
				UpdatedAt:  now,
			})
		}
	}

	if len(toCreate) == 0 {
		return 0, nil
	}
	if err := d.store.CreateAll(ctx, toCreate); err != nil {
		return 0, err
	}
	metrics.AddAnomaliesCreated(len(toCreate))
	if d.notifier != nil {
		for _, anomaly := range toCreate {
			d.notifier.Notify(ctx, anomaly)
		}
	}
	return len(toCreate), nil
}
