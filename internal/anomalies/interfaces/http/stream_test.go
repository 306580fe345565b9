package http

import (
	"context"
	"testing"
	"time"

	anomalies "opsboard/internal/anomalies/domain"
	metrics "opsboard/internal/metrics/domain"
)

func testAnomaly(orgID string) anomalies.Anomaly {
	return anomalies.Anomaly{
		ID:         "a1",
		OrgID:      orgID,
		LocationID: "loc-1",
		MetricType: metrics.MetricRevenue,
		Rule:       anomalies.RuleSuddenDropAvg7,
		Severity:   anomalies.SeverityHigh,
		Value:      55,
		Threshold:  100,
		Status:     anomalies.StatusOpen,
		DetectedAt: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestBroker_DeliversToSameTenantOnly(t *testing.T) {
	broker := NewSSEBroker()
	sameOrg := broker.Subscribe("org-a")
	otherOrg := broker.Subscribe("org-b")
	defer broker.Unsubscribe(sameOrg)
	defer broker.Unsubscribe(otherOrg)

	broker.Notify(context.Background(), testAnomaly("org-a"))

	select {
	case payload := <-sameOrg.ch:
		if len(payload) == 0 {
			t.Fatal("expected a payload")
		}
	default:
		t.Fatal("same-tenant client got nothing")
	}
	select {
	case <-otherOrg.ch:
		t.Fatal("foreign tenant must not receive the anomaly")
	default:
	}
}

func TestBroker_SendAfterUnsubscribeDoesNotPanic(t *testing.T) {
	broker := NewSSEBroker()
	client := broker.Subscribe("org-a")
	broker.Unsubscribe(client)

	// A broadcast racing a disconnect may still hold the client in its
	// snapshot and send after removal; the channel must stay open so that
	// send can never panic.
	select {
	case client.ch <- []byte("{}"):
	default:
		t.Fatal("channel closed or full after unsubscribe")
	}

	broker.Notify(context.Background(), testAnomaly("org-a"))
	if got := len(client.ch); got != 1 {
		t.Fatalf("removed client must not receive broadcasts, got %d buffered", got)
	}
}

func TestBroker_FullClientDropsInsteadOfBlocking(t *testing.T) {
	broker := NewSSEBroker()
	client := broker.Subscribe("org-a")
	defer broker.Unsubscribe(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(client.ch)+5; i++ {
			broker.Notify(context.Background(), testAnomaly("org-a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if got := len(client.ch); got != cap(client.ch) {
		t.Fatalf("expected a full buffer, got %d of %d", got, cap(client.ch))
	}
}
