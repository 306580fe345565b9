package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsboard/internal/audit"
	"opsboard/internal/auth"
	"opsboard/internal/metrics/application"
	metrics "opsboard/internal/metrics/domain"
	obs "opsboard/internal/observability/metrics"
)

const maxCSVUploadBytes = 16 << 20

// Handler provides metric event intake endpoints.
type Handler struct {
	ingestion *application.IngestionService
	auditor   audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(ingestion *application.IngestionService, auditor audit.Logger) (*Handler, error) {
	if ingestion == nil {
		return nil, errors.New("metrics handler: nil ingestion service")
	}
	return &Handler{ingestion: ingestion, auditor: auditor}, nil
}

// ServeHTTP handles /api/v1/metrics subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/metrics/events":
		h.handleEvents(w, r)
	case "/api/v1/metrics/csv":
		h.handleCSV(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type eventsRequest struct {
	Events []metrics.EventInput `json:"events"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req eventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		http.Error(w, "events are required", http.StatusBadRequest)
		return
	}

	valid, validationErrs := metrics.ValidateBatch(req.Events, orgID)
	if len(validationErrs) > 0 {
		obs.IncIngestError()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": validationErrs})
		return
	}

	for _, ev := range valid {
		if err := auth.EnsureLocationAllowed(r.Context(), ev.LocationID); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	result, err := h.ingestion.Ingest(r.Context(), orgID, valid, metrics.SourceAPI)
	if err != nil {
		obs.IncIngestError()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obs.ObserveIngest(result.CreatedCount, result.ExistingCount)
	h.logAudit(r, "metrics.ingest", fmt.Sprintf("created=%d existing=%d", result.CreatedCount, result.ExistingCount))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

type csvRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	inputs, lines, rowErrs, err := parseCSVEvents(file, orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Structurally broken rows are skipped above, but rows that parse and
	// still fail validation reject the whole upload, same as the JSON path.
	valid, validationErrs := metrics.ValidateBatch(inputs, orgID)
	if len(validationErrs) > 0 {
		obs.IncIngestError()
		errs := make([]csvRowError, 0, len(validationErrs))
		for _, verr := range validationErrs {
			errs = append(errs, csvRowError{Line: lines[verr.Index], Message: verr.Message})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": errs})
		return
	}
	for _, ev := range valid {
		if err := auth.EnsureLocationAllowed(r.Context(), ev.LocationID); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	result, err := h.ingestion.Ingest(r.Context(), orgID, valid, metrics.SourceCSV)
	if err != nil {
		obs.IncIngestError()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	obs.ObserveIngest(result.CreatedCount, result.ExistingCount)
	h.logAudit(r, "metrics.csv_import", fmt.Sprintf("created=%d existing=%d skipped=%d", result.CreatedCount, result.ExistingCount, len(rowErrs)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"processed":     result.Processed,
		"createdCount":  result.CreatedCount,
		"existingCount": result.ExistingCount,
		"skipped":       len(rowErrs),
		"rowErrors":     rowErrs,
	})
}

// parseCSVEvents reads rows of locationId,timestamp,metricType,value. Rows
// that cannot be parsed are reported per-line and skipped; the rest of the
// file still imports. The event id derives from the row itself so re-uploads
// stay idempotent. The returned lines slice maps each input back to its file
// line for validation error reporting.
func parseCSVEvents(reader io.Reader, orgID string) ([]metrics.EventInput, []int, []csvRowError, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, nil, errors.New("csv: empty file")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"locationId", "timestamp", "metricType", "value"} {
		if _, ok := columns[required]; !ok {
			return nil, nil, nil, fmt.Errorf("csv: missing column %q", required)
		}
	}

	var inputs []metrics.EventInput
	var lines []int
	var rowErrs []csvRowError
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, csvRowError{Line: line, Message: "malformed row"})
			continue
		}

		locationID := strings.TrimSpace(record[columns["locationId"]])
		rawTimestamp := strings.TrimSpace(record[columns["timestamp"]])
		metricType := strings.TrimSpace(record[columns["metricType"]])
		rawValue := strings.TrimSpace(record[columns["value"]])

		timestamp, err := time.Parse(time.RFC3339, rawTimestamp)
		if err != nil {
			rowErrs = append(rowErrs, csvRowError{Line: line, Message: "timestamp must be RFC3339"})
			continue
		}
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			rowErrs = append(rowErrs, csvRowError{Line: line, Message: "value must be numeric"})
			continue
		}

		inputs = append(inputs, metrics.EventInput{
			EventID:    fmt.Sprintf("%s|%s|%s", locationID, metricType, rawTimestamp),
			OrgID:      orgID,
			LocationID: locationID,
			Timestamp:  timestamp.UTC(),
			MetricType: metricType,
			Value:      value,
		})
		lines = append(lines, line)
	}
	return inputs, lines, rowErrs, nil
}

func (h *Handler) logAudit(r *http.Request, action, detail string) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]string{"detail": detail})
	_ = h.auditor.Log(r.Context(), audit.Entry{
		OrgID:        auth.OrgIDFromContext(r.Context()),
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "metric_events",
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}
