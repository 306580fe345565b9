package metrics

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUTCDay_TruncatesAndConverts(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2026, time.March, 10, 2, 30, 0, 0, loc)
	got := UTCDay(ts)
	want := day(2026, time.March, 9)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDirtySpan_ExtendsThirteenDaysPastNewest(t *testing.T) {
	events := []Event{
		{EventID: "e1", Timestamp: time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)},
		{EventID: "e2", Timestamp: time.Date(2026, time.March, 5, 23, 59, 0, 0, time.UTC)},
		{EventID: "e3", Timestamp: time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC)},
	}

	span, err := DirtySpan(events)
	if err != nil {
		t.Fatalf("dirty span: %v", err)
	}
	if !span.MinDate.Equal(day(2026, time.March, 5)) {
		t.Fatalf("expected min 2026-03-05, got %v", span.MinDate)
	}
	if !span.MaxDate.Equal(day(2026, time.March, 23)) {
		t.Fatalf("expected max 2026-03-23, got %v", span.MaxDate)
	}
}

func TestDirtySpan_EmptyBatch(t *testing.T) {
	if _, err := DirtySpan(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestSpanUnion_WidensBothEnds(t *testing.T) {
	a := Span{MinDate: day(2026, time.March, 10), MaxDate: day(2026, time.March, 20)}
	b := Span{MinDate: day(2026, time.March, 5), MaxDate: day(2026, time.March, 18)}

	merged := a.Union(b)
	if !merged.MinDate.Equal(day(2026, time.March, 5)) {
		t.Fatalf("expected min 2026-03-05, got %v", merged.MinDate)
	}
	if !merged.MaxDate.Equal(day(2026, time.March, 20)) {
		t.Fatalf("expected max 2026-03-20, got %v", merged.MaxDate)
	}

	// Union is commutative.
	flipped := b.Union(a)
	if !flipped.MinDate.Equal(merged.MinDate) || !flipped.MaxDate.Equal(merged.MaxDate) {
		t.Fatalf("union not commutative: %v vs %v", flipped, merged)
	}
}

func TestParseMetricType(t *testing.T) {
	if got, ok := ParseMetricType(" Revenue "); !ok || got != MetricRevenue {
		t.Fatalf("expected revenue, got %q ok=%v", got, ok)
	}
	if _, ok := ParseMetricType("margin"); ok {
		t.Fatal("expected unknown metric type to fail")
	}
}
