package application

import (
	"context"
	"errors"
	"time"

	"opsboard/internal/auth"
	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

// RollupSource reads rollup rows for dashboard aggregation.
type RollupSource interface {
	ListRange(ctx context.Context, orgID string, locationIDs []string, metricType metrics.MetricType, start, end time.Time) ([]rollups.DailyRollup, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// KPI summarizes one metric type across the selected locations.
type KPI struct {
	MetricType   metrics.MetricType `json:"metricType"`
	Total        float64            `json:"total"`
	Average      float64            `json:"average"`
	TrendPercent float64            `json:"trendPercent"`
	Locations    int                `json:"locations"`
}

// HistoryPoint is one day of a metric's history, summed across locations.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Avg7  float64 `json:"avg7"`
}

// Service computes dashboard aggregates from daily rollups.
type Service struct {
	source RollupSource
	clock  Clock
}

// Option customizes the service.
type Option func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service.
func NewService(source RollupSource, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("dashboard: nil rollup source")
	}
	service := &Service{source: source, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// KPIs computes the per-metric snapshot as of the given day: totals and
// averages over the latest rollup of each location, plus the trend of the
// 7-day average against the prior 7-day average. Zero asOf means today.
func (s *Service) KPIs(ctx context.Context, locationIDs []string, asOf time.Time) ([]KPI, error) {
	if s == nil {
		return nil, errors.New("dashboard: nil service")
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return nil, errors.New("dashboard: missing tenant")
	}

	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	end := metrics.UTCDay(asOf)
	start := metrics.AddDays(end, -metrics.RecomputeLookbackDays)

	rows, err := s.source.ListRange(ctx, orgID, locationIDs, "", start, end)
	if err != nil {
		return nil, err
	}

	// Latest row per location wins; older days only back-fill locations that
	// have no newer data.
	type latest map[string]rollups.DailyRollup
	byMetric := make(map[metrics.MetricType]latest)
	for _, row := range rows {
		perLocation, ok := byMetric[row.MetricType]
		if !ok {
			perLocation = make(latest)
			byMetric[row.MetricType] = perLocation
		}
		current, ok := perLocation[row.LocationID]
		if !ok || row.Date.After(current.Date) {
			perLocation[row.LocationID] = row
		}
	}

	kpis := make([]KPI, 0, len(metrics.AllMetricTypes()))
	for _, metricType := range metrics.AllMetricTypes() {
		perLocation := byMetric[metricType]
		kpi := KPI{MetricType: metricType}
		var sumAvg7, sumPrior7 float64
		for _, row := range perLocation {
			kpi.Total += row.Value
			sumAvg7 += row.Avg7
			sumPrior7 += row.Prior7Avg
			kpi.Locations++
		}
		if kpi.Locations > 0 {
			kpi.Average = kpi.Total / float64(kpi.Locations)
		}
		if sumPrior7 != 0 {
			kpi.TrendPercent = (sumAvg7 - sumPrior7) / sumPrior7 * 100
		}
		kpis = append(kpis, kpi)
	}
	return kpis, nil
}

// History returns the trailing daily series of one metric type, values summed
// across the selected locations.
func (s *Service) History(ctx context.Context, metricType metrics.MetricType, locationIDs []string, days int) ([]HistoryPoint, error) {
	if s == nil {
		return nil, errors.New("dashboard: nil service")
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return nil, errors.New("dashboard: missing tenant")
	}
	if metricType == "" {
		return nil, errors.New("dashboard: metric type required")
	}
	if days <= 0 {
		days = 30
	}

	end := metrics.UTCDay(s.clock.Now())
	start := metrics.AddDays(end, -(days - 1))

	rows, err := s.source.ListRange(ctx, orgID, locationIDs, metricType, start, end)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*HistoryPoint, days)
	for _, row := range rows {
		key := row.Date.Format("2006-01-02")
		point, ok := totals[key]
		if !ok {
			point = &HistoryPoint{Date: key}
			totals[key] = point
		}
		point.Value += row.Value
		point.Avg7 += row.Avg7
	}

	points := make([]HistoryPoint, 0, days)
	for day := start; !day.After(end); day = metrics.AddDays(day, 1) {
		key := day.Format("2006-01-02")
		if point, ok := totals[key]; ok {
			points = append(points, *point)
			continue
		}
		points = append(points, HistoryPoint{Date: key})
	}
	return points, nil
}
