package metrics

import (
	"math"
	"strings"
	"testing"
	"time"
)

func validInput(eventID string) EventInput {
	return EventInput{
		EventID:    eventID,
		OrgID:      "org-a",
		LocationID: "loc-1",
		Timestamp:  time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		MetricType: "revenue",
		Value:      120.5,
	}
}

func TestValidateBatch_AllValid(t *testing.T) {
	inputs := []EventInput{validInput("e1"), validInput("e2")}

	valid, errs := ValidateBatch(inputs, "org-a")
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid events, got %d", len(valid))
	}
	if valid[0].MetricType != MetricRevenue {
		t.Fatalf("expected revenue, got %q", valid[0].MetricType)
	}
}

func TestValidateBatch_ReportsEveryBadItem(t *testing.T) {
	missing := validInput("")
	badMetric := validInput("e2")
	badMetric.MetricType = "margin"
	nanValue := validInput("e3")
	nanValue.Value = math.NaN()

	valid, errs := ValidateBatch([]EventInput{missing, validInput("ok"), badMetric, nanValue}, "org-a")
	if len(valid) != 1 || valid[0].EventID != "ok" {
		t.Fatalf("expected only the good event, got %v", valid)
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Index != 0 || errs[1].Index != 2 || errs[2].Index != 3 {
		t.Fatalf("unexpected indices: %v", errs)
	}
}

func TestValidateBatch_TenantMismatchIsError(t *testing.T) {
	foreign := validInput("e1")
	foreign.OrgID = "org-b"

	valid, errs := ValidateBatch([]EventInput{foreign}, "org-a")
	if len(valid) != 0 {
		t.Fatalf("expected cross-tenant event rejected, got %v", valid)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "tenant") {
		t.Fatalf("expected tenant mismatch error, got %v", errs)
	}
}
