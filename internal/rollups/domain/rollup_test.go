package rollups

import (
	"testing"
	"time"

	metrics "opsboard/internal/metrics/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildRollups_AveragesAlwaysDivideBySeven(t *testing.T) {
	totals := make(DailyTotals)
	// One 70-unit day inside an otherwise empty week.
	totals.Add("loc-1", metrics.MetricRevenue, day(2026, time.March, 10), 70)

	rows := BuildRollups("org-a", []string{"loc-1"}, totals, day(2026, time.March, 10), day(2026, time.March, 10))

	var got *DailyRollup
	for i := range rows {
		if rows[i].MetricType == metrics.MetricRevenue {
			got = &rows[i]
			break
		}
	}
	if got == nil {
		t.Fatal("missing revenue rollup")
	}
	if got.Value != 70 {
		t.Fatalf("expected value 70, got %v", got.Value)
	}
	if got.Avg7 != 10 {
		t.Fatalf("expected avg7 70/7=10, got %v", got.Avg7)
	}
	if got.Prior7Avg != 0 {
		t.Fatalf("expected prior7Avg 0, got %v", got.Prior7Avg)
	}
}

func TestBuildRollups_SumsMultipleEventsPerDay(t *testing.T) {
	totals := make(DailyTotals)
	totals.Add("loc-1", metrics.MetricOrders, day(2026, time.March, 10).Add(8*time.Hour), 2)
	totals.Add("loc-1", metrics.MetricOrders, day(2026, time.March, 10).Add(20*time.Hour), 3)

	rows := BuildRollups("org-a", []string{"loc-1"}, totals, day(2026, time.March, 10), day(2026, time.March, 10))
	for _, row := range rows {
		if row.MetricType == metrics.MetricOrders {
			if row.Value != 5 {
				t.Fatalf("expected summed value 5, got %v", row.Value)
			}
			return
		}
	}
	t.Fatal("missing orders rollup")
}

func TestBuildRollups_DenseEvenWithoutEvents(t *testing.T) {
	rows := BuildRollups("org-a", []string{"loc-1", "loc-2"}, make(DailyTotals), day(2026, time.March, 1), day(2026, time.March, 3))

	want := 3 * 2 * len(metrics.AllMetricTypes())
	if len(rows) != want {
		t.Fatalf("expected %d dense rows, got %d", want, len(rows))
	}
	for _, row := range rows {
		if row.Value != 0 || row.Avg7 != 0 || row.Prior7Avg != 0 {
			t.Fatalf("expected zero row, got %+v", row)
		}
	}
}

func TestBuildRollups_Prior7WindowOffset(t *testing.T) {
	totals := make(DailyTotals)
	// 14 units exactly 7 days before the target: inside prior7, outside avg7.
	totals.Add("loc-1", metrics.MetricRevenue, day(2026, time.March, 3), 14)

	rows := BuildRollups("org-a", []string{"loc-1"}, totals, day(2026, time.March, 10), day(2026, time.March, 10))
	for _, row := range rows {
		if row.MetricType == metrics.MetricRevenue {
			if row.Avg7 != 0 {
				t.Fatalf("expected avg7 0, got %v", row.Avg7)
			}
			if row.Prior7Avg != 2 {
				t.Fatalf("expected prior7Avg 14/7=2, got %v", row.Prior7Avg)
			}
			return
		}
	}
	t.Fatal("missing revenue rollup")
}

func TestBuildRollups_Deterministic(t *testing.T) {
	totals := make(DailyTotals)
	totals.Add("loc-1", metrics.MetricFootfall, day(2026, time.March, 9), 40)
	totals.Add("loc-1", metrics.MetricFootfall, day(2026, time.March, 10), 60)

	first := BuildRollups("org-a", []string{"loc-1"}, totals, day(2026, time.March, 8), day(2026, time.March, 10))
	second := BuildRollups("org-a", []string{"loc-1"}, totals, day(2026, time.March, 8), day(2026, time.March, 10))
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
