package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	anomalies "opsboard/internal/anomalies/domain"
	"opsboard/internal/auth"
)

type streamClient struct {
	orgID string
	ch    chan []byte
}

// SSEBroker fans out newly detected anomalies to connected clients of the
// same tenant.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[*streamClient]struct{})}
}

// Notify implements application.AnomalyNotifier.
func (b *SSEBroker) Notify(_ context.Context, anomaly anomalies.Anomaly) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return
	}
	b.broadcast(anomaly.OrgID, payload)
}

// Subscribe registers a new client channel scoped to a tenant.
func (b *SSEBroker) Subscribe(orgID string) *streamClient {
	if b == nil {
		return nil
	}
	client := &streamClient{orgID: orgID, ch: make(chan []byte, 16)}
	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	return client
}

// Unsubscribe removes a client channel. The channel is never closed: a
// broadcast snapshotting clients concurrently may still send into it, and a
// send on a closed channel would panic the process.
func (b *SSEBroker) Unsubscribe(client *streamClient) {
	if b == nil || client == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, client)
	b.mu.Unlock()
}

func (b *SSEBroker) broadcast(orgID string, payload []byte) {
	b.mu.Lock()
	clients := make([]*streamClient, 0, len(b.clients))
	for client := range b.clients {
		if client.orgID == orgID {
			clients = append(clients, client)
		}
	}
	b.mu.Unlock()
	for _, client := range clients {
		select {
		case client.ch <- payload:
		default:
		}
	}
}

// StreamHandler serves the SSE anomaly stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/anomalies/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := h.broker.Subscribe(orgID)
	if client == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(client)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload := <-client.ch:
			_, _ = w.Write([]byte("event: anomaly\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
