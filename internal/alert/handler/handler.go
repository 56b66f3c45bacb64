// Package handler wires the alert lifecycle to HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trackguard/internal/alert"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/platform/httputil"
	"trackguard/pkg/requestcontext"
)

// Service defines the alert operations the HTTP layer needs.
type Service interface {
	Status(ctx context.Context) (*alert.StatusSummary, error)
	Get(ctx context.Context, id domain.AlertID) (*alert.Alert, error)
	History(ctx context.Context, q alert.HistoryQuery, limit int) ([]alert.Alert, error)
	Acknowledge(ctx context.Context, id domain.AlertID, by, notes string) (*alert.Alert, error)
	Resolve(ctx context.Context, id domain.AlertID, by, notes string, wasActualTampering bool) (*alert.Alert, error)
}

// Handler wires alert endpoints to the alert service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an alert handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts alert endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/alert/status", h.HandleStatus)
	r.Get("/alert/history", h.HandleHistory)
	r.Get("/alert/{alert_id}", h.HandleGet)
	r.Post("/alert/acknowledge", h.HandleAcknowledge)
	r.Post("/alert/resolve", h.HandleResolve)
}

// HandleStatus handles GET /alert/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.service.Status(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "alert status query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleGet handles GET /alert/{alert_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), domain.AlertID(chi.URLParam(r, "alert_id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleHistory handles GET /alert/history?zone_id=&severity=&status=&limit=N.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	limit := 0
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	q := alert.HistoryQuery{
		ZoneID:   domain.ZoneID(params.Get("zone_id")),
		Severity: alert.Severity(params.Get("severity")),
		Status:   alert.Status(params.Get("status")),
	}
	alerts, err := h.service.History(ctx, q, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "alert history query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

type acknowledgeRequest struct {
	AlertID        string `json:"alert_id"`
	AcknowledgedBy string `json:"acknowledged_by"`
	Notes          string `json:"notes"`
}

func (req acknowledgeRequest) validate() error {
	if req.AlertID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "alert_id is required")
	}
	if req.AcknowledgedBy == "" {
		return dErrors.New(dErrors.CodeBadRequest, "acknowledged_by is required")
	}
	return nil
}

// HandleAcknowledge handles POST /alert/acknowledge.
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[acknowledgeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.service.Acknowledge(ctx, domain.AlertID(req.AlertID), req.AcknowledgedBy, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

type resolveRequest struct {
	AlertID            string `json:"alert_id"`
	ResolvedBy         string `json:"resolved_by"`
	Notes              string `json:"notes"`
	WasActualTampering *bool  `json:"was_actual_tampering"`
}

func (req resolveRequest) validate() error {
	if req.AlertID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "alert_id is required")
	}
	if req.ResolvedBy == "" {
		return dErrors.New(dErrors.CodeBadRequest, "resolved_by is required")
	}
	if req.WasActualTampering == nil {
		return dErrors.New(dErrors.CodeBadRequest, "was_actual_tampering is required")
	}
	return nil
}

// HandleResolve handles POST /alert/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[resolveRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.service.Resolve(ctx, domain.AlertID(req.AlertID), req.ResolvedBy, req.Notes, *req.WasActualTampering)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}
