package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"opsboard/internal/auth"
	metrics "opsboard/internal/metrics/domain"
	obs "opsboard/internal/observability/metrics"
	"opsboard/internal/rollups/application"
)

const (
	dateLayout = "2006-01-02"

	// drainCap bounds how many queue jobs one process request may run.
	drainCap = 20

	// defaultRecomputeDays is the trailing window recomputed when the caller
	// supplies no explicit range.
	defaultRecomputeDays = 14
)

// Handler provides rollup pipeline HTTP endpoints.
type Handler struct {
	processor *application.QueueProcessor
	pipeline  *application.Pipeline
}

// NewHandler constructs a handler.
func NewHandler(processor *application.QueueProcessor, pipeline *application.Pipeline) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("rollups handler: nil queue processor")
	}
	if pipeline == nil {
		return nil, errors.New("rollups handler: nil pipeline")
	}
	return &Handler{processor: processor, pipeline: pipeline}, nil
}

// ServeHTTP handles /api/v1/rollups subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/rollups/process":
		h.handleProcess(w, r)
	case "/api/v1/rollups/recompute":
		h.handleRecompute(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	started := time.Now()
	result, err := h.processor.Drain(r.Context(), orgID, drainCap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for i := 0; i < result.Processed; i++ {
		obs.IncQueueSpanProcessed()
	}
	obs.ObserveRecompute(time.Since(started), result.Upserted)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

type recomputeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type recomputeResponse struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Upserted  int    `json:"upserted"`
	Anomalies int    `json:"anomalies"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req recomputeRequest
	if r.Body != nil {
		// An empty body means "trailing window"; only malformed JSON is an error.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	end := metrics.UTCDay(time.Now().UTC())
	start := metrics.AddDays(end, -(defaultRecomputeDays - 1))
	if req.StartDate != "" || req.EndDate != "" {
		if req.StartDate == "" || req.EndDate == "" {
			http.Error(w, "startDate and endDate must be supplied together", http.StatusBadRequest)
			return
		}
		var err error
		start, err = time.Parse(dateLayout, req.StartDate)
		if err != nil {
			http.Error(w, "startDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err = time.Parse(dateLayout, req.EndDate)
		if err != nil {
			http.Error(w, "endDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if end.Before(start) {
			http.Error(w, "endDate must not precede startDate", http.StatusBadRequest)
			return
		}
	}

	started := time.Now()
	upserted, anomalies, err := h.pipeline.RecomputeAndDetect(r.Context(), orgID, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obs.ObserveRecompute(time.Since(started), upserted)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recomputeResponse{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		Upserted:  upserted,
		Anomalies: anomalies,
	})
}
