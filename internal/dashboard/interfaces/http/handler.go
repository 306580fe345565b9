package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsboard/internal/auth"
	"opsboard/internal/dashboard/application"
	metrics "opsboard/internal/metrics/domain"
)

const dateLayout = "2006-01-02"

// Handler provides dashboard HTTP endpoints.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("dashboard handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/dashboard subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/dashboard/kpis":
		h.handleKPIs(w, r)
	case "/api/v1/dashboard/history":
		h.handleHistory(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	locationIDs, err := permittedLocations(r)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		asOf, err = time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	kpis, err := h.service.KPIs(r.Context(), locationIDs, asOf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"kpis": kpis})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	locationIDs, err := permittedLocations(r)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	metricType, ok := metrics.ParseMetricType(r.URL.Query().Get("metric_type"))
	if !ok {
		http.Error(w, "metric_type is required", http.StatusBadRequest)
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
	}

	points, err := h.service.History(r.Context(), metricType, locationIDs, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"metricType": metricType,
		"points":     points,
	})
}

func permittedLocations(r *http.Request) ([]string, error) {
	var requested []string
	if raw := r.URL.Query().Get("location_id"); raw != "" {
		requested = strings.Split(raw, ",")
	}
	return auth.PermittedLocationIDs(r.Context(), requested)
}
