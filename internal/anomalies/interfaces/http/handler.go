package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"opsboard/internal/anomalies/application"
	anomalies "opsboard/internal/anomalies/domain"
	"opsboard/internal/auth"
)

// Handler provides anomaly HTTP endpoints.
type Handler struct {
	workflow *application.WorkflowService
}

// NewHandler constructs a handler.
func NewHandler(workflow *application.WorkflowService) (*Handler, error) {
	if workflow == nil {
		return nil, errors.New("anomalies handler: nil workflow service")
	}
	return &Handler{workflow: workflow}, nil
}

// ServeHTTP handles /api/v1/anomalies and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/anomalies":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/anomalies/"):
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleUpdate(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := application.ListFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := anomalies.NormalizeStatus(raw)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	var requested []string
	if raw := r.URL.Query().Get("location_id"); raw != "" {
		requested = strings.Split(raw, ",")
	}
	permitted, err := auth.PermittedLocationIDs(r.Context(), requested)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	filter.LocationIDs = permitted

	list, err := h.workflow.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"anomalies": list})
}

type updateRequest struct {
	Status       string `json:"status"`
	ActionItemID string `json:"actionItemId"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/anomalies/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var status anomalies.Status
	if req.Status != "" {
		normalized, ok := anomalies.NormalizeStatus(req.Status)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		status = normalized
	}

	anomaly, err := h.workflow.Update(r.Context(), id, status, req.ActionItemID)
	if err != nil {
		switch {
		case errors.Is(err, anomalies.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, auth.ErrLocationForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(anomaly)
}
