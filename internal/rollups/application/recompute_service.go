package application

import (
	"context"
	"errors"
	"time"

	masterdata "opsboard/internal/masterdata/domain"
	metrics "opsboard/internal/metrics/domain"
	rollups "opsboard/internal/rollups/domain"
)

// EventReader loads raw metric events for aggregation.
type EventReader interface {
	QueryRange(ctx context.Context, orgID string, start, endExclusive time.Time) ([]metrics.Event, error)
}

// RollupWriter persists recomputed rollups with full overwrite semantics.
type RollupWriter interface {
	UpsertAll(ctx context.Context, rollupRows []rollups.DailyRollup) error
}

// RecomputeService rebuilds daily rollups for a tenant and date range from raw
// events only. A recompute is deterministic and safe to repeat wholesale.
type RecomputeService struct {
	events    EventReader
	locations masterdata.LocationRepository
	writer    RollupWriter
}

// NewRecomputeService constructs a recompute service.
func NewRecomputeService(events EventReader, locations masterdata.LocationRepository, writer RollupWriter) (*RecomputeService, error) {
	if events == nil {
		return nil, errors.New("recompute service: nil event reader")
	}
	if locations == nil {
		return nil, errors.New("recompute service: nil location repository")
	}
	if writer == nil {
		return nil, errors.New("recompute service: nil rollup writer")
	}
	return &RecomputeService{events: events, locations: locations, writer: writer}, nil
}

// Recompute rebuilds rollups for every location x metric type x day in
// [startDate, endDate] inclusive and returns the number of rows upserted.
// Raw events are scanned exactly once, over a window wide enough that both
// trailing averages of every requested day are covered.
func (s *RecomputeService) Recompute(ctx context.Context, orgID string, startDate, endDate time.Time) (int, error) {
	if s == nil {
		return 0, errors.New("recompute service: nil service")
	}
	if orgID == "" {
		return 0, errors.New("recompute service: empty org id")
	}
	if startDate.IsZero() || endDate.IsZero() {
		return 0, errors.New("recompute service: empty date range")
	}

	start := metrics.UTCDay(startDate)
	end := metrics.UTCDay(endDate)
	if end.Before(start) {
		return 0, errors.New("recompute service: end before start")
	}

	readStart := metrics.AddDays(start, -metrics.RecomputeLookbackDays)
	readEndExclusive := metrics.AddDays(end, 1)

	locations, err := s.locations.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}
	events, err := s.events.QueryRange(ctx, orgID, readStart, readEndExclusive)
	if err != nil {
		return 0, err
	}

	totals := make(rollups.DailyTotals, len(events))
	for _, ev := range events {
		totals.Add(ev.LocationID, ev.MetricType, ev.Timestamp, ev.Value)
	}

	rows := rollups.BuildRollups(orgID, masterdata.LocationIDs(locations), totals, start, end)
	if err := s.writer.UpsertAll(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
