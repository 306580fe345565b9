package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	anomalyapp "opsboard/internal/anomalies/application"
	anomalies "opsboard/internal/anomalies/domain"
	"opsboard/internal/auth"
	"opsboard/internal/exports/interfaces"
	masterdata "opsboard/internal/masterdata/domain"
	metrics "opsboard/internal/metrics/domain"
	obs "opsboard/internal/observability/metrics"
	rollups "opsboard/internal/rollups/domain"
)

const (
	dateLayout = "2006-01-02"

	// defaultExportDays is the trailing window exported when no explicit
	// range is supplied.
	defaultExportDays = 30
)

// RollupSource reads rollup rows for export.
type RollupSource interface {
	ListRange(ctx context.Context, orgID string, locationIDs []string, metricType metrics.MetricType, start, end time.Time) ([]rollups.DailyRollup, error)
}

// Handler provides export download endpoints.
type Handler struct {
	rollups   RollupSource
	anomalies *anomalyapp.WorkflowService
	locations masterdata.LocationRepository
}

// NewHandler constructs a handler.
func NewHandler(rollupSource RollupSource, workflow *anomalyapp.WorkflowService, locations masterdata.LocationRepository) (*Handler, error) {
	if rollupSource == nil {
		return nil, errors.New("exports handler: nil rollup source")
	}
	if workflow == nil {
		return nil, errors.New("exports handler: nil anomaly workflow")
	}
	if locations == nil {
		return nil, errors.New("exports handler: nil location repository")
	}
	return &Handler{rollups: rollupSource, anomalies: workflow, locations: locations}, nil
}

// ServeHTTP handles /api/v1/exports subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/exports/rollups.csv":
		h.handleRollups(w, r, "csv")
	case "/api/v1/exports/rollups.xlsx":
		h.handleRollups(w, r, "xlsx")
	case "/api/v1/exports/anomalies.pdf":
		h.handleAnomaliesPDF(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRollups(w http.ResponseWriter, r *http.Request, format string) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	locationIDs, err := permittedLocations(r)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	end := metrics.UTCDay(time.Now().UTC())
	start := metrics.AddDays(end, -(defaultExportDays - 1))
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		start, err = time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		end, err = time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	var metricType metrics.MetricType
	if raw := r.URL.Query().Get("metric_type"); raw != "" {
		parsed, ok := metrics.ParseMetricType(raw)
		if !ok {
			http.Error(w, "unknown metric_type", http.StatusBadRequest)
			return
		}
		metricType = parsed
	}

	rows, err := h.rollups.ListRange(r.Context(), orgID, locationIDs, metricType, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	locationsByID, err := h.locationIndex(r, orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var payload []byte
	switch format {
	case "csv":
		payload, err = interfaces.BuildRollupsCSV(rows, locationsByID)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="rollups.csv"`)
	case "xlsx":
		payload, err = interfaces.BuildRollupsXLSX(rows, locationsByID)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="rollups.xlsx"`)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obs.ObserveExport(format)
	_, _ = w.Write(payload)
}

func (h *Handler) handleAnomaliesPDF(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	locationIDs, err := permittedLocations(r)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	filter := anomalyapp.ListFilter{LocationIDs: locationIDs}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := anomalies.NormalizeStatus(raw)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}

	items, err := h.anomalies.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	locationsByID, err := h.locationIndex(r, orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload, err := interfaces.BuildAnomaliesPDF(orgID, items, locationsByID, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obs.ObserveExport("pdf")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="anomalies.pdf"`)
	_, _ = w.Write(payload)
}

func (h *Handler) locationIndex(r *http.Request, orgID string) (map[string]masterdata.Location, error) {
	locations, err := h.locations.ListByOrg(r.Context(), orgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]masterdata.Location, len(locations))
	for _, loc := range locations {
		byID[loc.ID] = loc
	}
	return byID, nil
}

func permittedLocations(r *http.Request) ([]string, error) {
	var requested []string
	if raw := r.URL.Query().Get("location_id"); raw != "" {
		requested = strings.Split(raw, ",")
	}
	return auth.PermittedLocationIDs(r.Context(), requested)
}
