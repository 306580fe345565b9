package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"opsboard/internal/actionitems/application"
	actionitems "opsboard/internal/actionitems/domain"
	"opsboard/internal/auth"
)

// Handler provides action item HTTP endpoints.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("action items handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/action-items and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/action-items":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/action-items/"):
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleUpdate(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createRequest struct {
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Assignee   string `json:"assignee"`
	LocationID string `json:"locationId"`
	AnomalyID  string `json:"anomalyId"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	item, err := h.service.Create(r.Context(), application.CreateInput{
		Title:      req.Title,
		Notes:      req.Notes,
		Assignee:   req.Assignee,
		LocationID: req.LocationID,
		AnomalyID:  req.AnomalyID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(item)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := application.ListFilter{Assignee: r.URL.Query().Get("assignee")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := actionitems.NormalizeStatus(raw)
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

	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"actionItems": items})
}

type updateRequest struct {
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/action-items/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	input := application.UpdateInput{Assignee: req.Assignee, Notes: req.Notes}
	if req.Status != "" {
		status, ok := actionitems.NormalizeStatus(req.Status)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		input.Status = status
	}

	item, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actionitems.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrLocationForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
