package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// AlertStore is the alert surface the handlers need. Listing and updates are
// always scoped to the caller's owner.
type AlertStore interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*models.Alert, int, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, owner, status string) error
}

// NewListAlertsHandler returns the handler for GET /api/v1/alerts.
func NewListAlertsHandler(st AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page := queryInt(q.Get("page"), 1)
		limit := queryInt(q.Get("limit"), 20)

		filter := store.AlertFilter{
			Owner:    mw.GetOwner(r),
			Category: q.Get("category"),
			Severity: q.Get("severity"),
			Zone:     q.Get("zone"),
			Status:   q.Get("status"),
			Page:     page,
			Limit:    limit,
		}
		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = t
		}

		alerts, total, err := st.ListAlerts(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if alerts == nil {
			alerts = []*models.Alert{}
		}

		response.Collection(w, alerts, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewUpdateAlertHandler returns the handler for
// POST /api/v1/alerts/{alertID}/status. The only mutable field is the
// lifecycle status.
func NewUpdateAlertHandler(st AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "alertID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "alertID must be a UUID", nil)
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !models.ValidAlertStatus(req.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of active, acknowledged, resolved, dismissed", nil)
			return
		}

		err = st.UpdateAlertStatus(r.Context(), id, mw.GetOwner(r), req.Status)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such alert", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]any{"id": id, "status": req.Status})
	}
}

func queryInt(raw string, defaultVal int) int {
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultVal
	}
	return n
}
