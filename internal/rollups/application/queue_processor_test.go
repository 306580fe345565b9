package application

import (
	"context"
	"testing"
	"time"

	anomalyapp "opsboard/internal/anomalies/application"
	anomalymem "opsboard/internal/anomalies/infrastructure/memory"
	masterdata "opsboard/internal/masterdata/domain"
	masterdatamem "opsboard/internal/masterdata/infrastructure/memory"
	metrics "opsboard/internal/metrics/domain"
	metricsmem "opsboard/internal/metrics/infrastructure/memory"
	rollups "opsboard/internal/rollups/domain"
	rollupmem "opsboard/internal/rollups/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type pipelineFixture struct {
	events    *metricsmem.EventStore
	rollups   *rollupmem.RollupRepository
	anomalies *anomalymem.AnomalyRepository
	processor *QueueProcessor
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T, now time.Time) *pipelineFixture {
	t.Helper()

	events := metricsmem.NewEventStore()
	rollupRepo := rollupmem.NewRollupRepository()
	anomalyRepo := anomalymem.NewAnomalyRepository()
	locations := masterdatamem.NewLocationRepository()
	if err := locations.Save(context.Background(), &masterdata.Location{ID: "loc-1", OrgID: "org-a", Name: "Store One"}); err != nil {
		t.Fatalf("save location: %v", err)
	}

	detector, err := anomalyapp.NewDetector(rollupRepo, locations, anomalyRepo, anomalyapp.DefaultRuleConfig(), anomalyapp.WithClock(fixedClock{now: now}))
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	recompute, err := NewRecomputeService(events, locations, rollupRepo)
	if err != nil {
		t.Fatalf("new recompute: %v", err)
	}
	pipeline, err := NewPipeline(recompute, detector)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	processor, err := NewQueueProcessor(events, pipeline)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return &pipelineFixture{
		events:    events,
		rollups:   rollupRepo,
		anomalies: anomalyRepo,
		processor: processor,
		pipeline:  pipeline,
	}
}

func ingestDay(t *testing.T, f *pipelineFixture, day time.Time, value float64) {
	t.Helper()
	ev := metrics.Event{
		EventID:    "e-" + day.Format("2006-01-02"),
		OrgID:      "org-a",
		LocationID: "loc-1",
		Timestamp:  day.Add(12 * time.Hour),
		MetricType: metrics.MetricRevenue,
		Value:      value,
	}
	span, err := metrics.DirtySpan([]metrics.Event{ev})
	if err != nil {
		t.Fatalf("dirty span: %v", err)
	}
	if err := f.events.IngestBatch(context.Background(), "org-a", []metrics.Event{ev}, span); err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

func TestProcessOnce_RecomputesAndDrainsEntry(t *testing.T) {
	now := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t, now)
	ingestDay(t, f, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), 100)

	result, err := f.processor.ProcessOnce(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Ran || result.OrgID != "org-a" {
		t.Fatalf("expected a processed job, got %+v", result)
	}
	// Span is event day through +13, dense over 7 metric types.
	want := 14 * len(metrics.AllMetricTypes())
	if result.Upserted != want {
		t.Fatalf("expected %d rollups, got %d", want, result.Upserted)
	}
	if _, ok := f.events.QueueEntry("org-a"); ok {
		t.Fatal("expected queue entry deleted after processing")
	}

	row := f.rollups.Get("org-a", "loc-1", metrics.MetricRevenue, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC))
	if row == nil || row.Value != 100 {
		t.Fatalf("expected recomputed value 100, got %+v", row)
	}
}

func TestProcessOnce_NoPendingWork(t *testing.T) {
	f := newPipelineFixture(t, time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC))

	result, err := f.processor.ProcessOnce(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Ran {
		t.Fatalf("expected idle result, got %+v", result)
	}
}

// widenOnDelete simulates an ingest that lands between a processor's read and
// its delete: the queue span it tries to remove is no longer the stored one.
type widenOnDelete struct {
	*metricsmem.EventStore
	widened bool
}

func (w *widenOnDelete) DeleteMatching(ctx context.Context, entry rollups.QueueEntry) error {
	if !w.widened {
		w.widened = true
		wider := metrics.Span{MinDate: entry.MinDate, MaxDate: metrics.AddDays(entry.MaxDate, 5)}
		if err := w.EventStore.IngestBatch(ctx, entry.OrgID, []metrics.Event{{
			EventID:    "late-arrival",
			OrgID:      entry.OrgID,
			LocationID: "loc-1",
			Timestamp:  entry.MaxDate.Add(12 * time.Hour),
			MetricType: metrics.MetricRevenue,
			Value:      1,
		}}, wider); err != nil {
			return err
		}
	}
	return w.EventStore.DeleteMatching(ctx, entry)
}

func TestProcessOnce_ConcurrentlyWidenedEntrySurvives(t *testing.T) {
	now := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t, now)
	ingestDay(t, f, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), 100)

	racy := &widenOnDelete{EventStore: f.events}
	processor, err := NewQueueProcessor(racy, f.pipeline)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := processor.ProcessOnce(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Ran {
		t.Fatal("expected a processed job")
	}
	if _, ok := f.events.QueueEntry("org-a"); !ok {
		t.Fatal("widened queue entry must survive the stale delete")
	}
}

func TestDrain_StopsAtCap(t *testing.T) {
	now := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t, now)
	ingestDay(t, f, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), 100)

	// One pending entry: the drain processes it and stops early.
	result, err := f.processor.Drain(context.Background(), "org-a", 20)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed span, got %d", result.Processed)
	}

	again, err := f.processor.Drain(context.Background(), "org-a", 20)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if again.Processed != 0 {
		t.Fatalf("expected idle drain, got %+v", again)
	}
}
