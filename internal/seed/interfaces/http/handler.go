package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"opsboard/internal/seed/application"
)

// Handler provides the demo seed endpoint.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("seed handler: nil service")
	}
	return &Handler{service: service}, nil
}

type runRequest struct {
	Days int `json:"days"`
}

// ServeHTTP handles POST /api/v1/seed/run.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/api/v1/seed/run" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req runRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}
	if req.Days < 0 || req.Days > 365 {
		http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
		return
	}

	result, err := h.service.Run(r.Context(), req.Days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
