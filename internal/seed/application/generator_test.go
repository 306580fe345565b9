package application

import (
	"context"
	"testing"
	"time"

	"opsboard/internal/auth"
	masterdata "opsboard/internal/masterdata/domain"
	masterdatamem "opsboard/internal/masterdata/infrastructure/memory"
	ingestapp "opsboard/internal/metrics/application"
	metrics "opsboard/internal/metrics/domain"
	metricsmem "opsboard/internal/metrics/infrastructure/memory"
)

func TestGenerateEvents_Deterministic(t *testing.T) {
	until := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	first := GenerateEvents("org-a", []string{"loc-1", "loc-2"}, 5, until)
	second := GenerateEvents("org-a", []string{"loc-1", "loc-2"}, 5, until)

	want := 5 * 2 * len(metrics.AllMetricTypes())
	if len(first) != want {
		t.Fatalf("expected %d events, got %d", want, len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestGenerateEvents_ShapeAndIdentity(t *testing.T) {
	until := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	events := GenerateEvents("org-a", []string{"loc-1"}, 2, until)

	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.EventID]; dup {
			t.Fatalf("duplicate event id %q", ev.EventID)
		}
		seen[ev.EventID] = struct{}{}
		if ev.Value < 0 {
			t.Fatalf("negative value for %q: %v", ev.EventID, ev.Value)
		}
		if ev.Timestamp.Hour() != 12 {
			t.Fatalf("expected noon timestamp, got %v", ev.Timestamp)
		}
	}
	// Newest day matches the reference day.
	last := events[len(events)-1]
	if !metrics.UTCDay(last.Timestamp).Equal(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected newest day 2026-03-10, got %v", last.Timestamp)
	}
}

func TestSeedRun_IdempotentAcrossRuns(t *testing.T) {
	store := metricsmem.NewEventStore()
	ingestion, err := ingestapp.NewIngestionService(store)
	if err != nil {
		t.Fatalf("new ingestion: %v", err)
	}
	locations := masterdatamem.NewLocationRepository()
	if err := locations.Save(context.Background(), &masterdata.Location{ID: "loc-1", OrgID: "org-a", Name: "Store One"}); err != nil {
		t.Fatalf("save location: %v", err)
	}
	service, err := NewService(locations, ingestion)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := auth.WithIdentity(context.Background(), auth.Identity{OrgID: "org-a", Role: auth.RoleAdmin, Subject: "admin-1"})

	first, err := service.Run(ctx, 7)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	wantCreated := 7 * len(metrics.AllMetricTypes())
	if first.Ingest.CreatedCount != wantCreated {
		t.Fatalf("expected %d created, got %d", wantCreated, first.Ingest.CreatedCount)
	}

	second, err := service.Run(ctx, 7)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Ingest.CreatedCount != 0 || second.Ingest.ExistingCount != wantCreated {
		t.Fatalf("expected full duplicate run, got %+v", second.Ingest)
	}
	if store.EventCount() != wantCreated {
		t.Fatalf("expected %d stored events, got %d", wantCreated, store.EventCount())
	}
}

func TestSeedRun_NoLocations(t *testing.T) {
	store := metricsmem.NewEventStore()
	ingestion, _ := ingestapp.NewIngestionService(store)
	service, _ := NewService(masterdatamem.NewLocationRepository(), ingestion)

	ctx := auth.WithIdentity(context.Background(), auth.Identity{OrgID: "org-a", Role: auth.RoleAdmin})
	result, err := service.Run(ctx, 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Locations != 0 || result.Ingest.CreatedCount != 0 {
		t.Fatalf("expected empty run, got %+v", result)
	}
}
