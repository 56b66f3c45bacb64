// Package handler wires the audit query surface to HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trackguard/internal/audit"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/platform/httputil"
	"trackguard/pkg/requestcontext"
)

// Service defines the audit operations the HTTP layer needs.
type Service interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
	ByZone(ctx context.Context, zone domain.ZoneID, limit int) ([]audit.Entry, error)
	Trace(ctx context.Context, id domain.ClassificationID) ([]audit.Entry, error)
	Verify(ctx context.Context) error
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/system/audit/recent", h.HandleRecent)
	r.Get("/system/audit/trace", h.HandleTrace)
	r.Get("/system/audit/verify", h.HandleVerify)
}

// HandleRecent handles GET /system/audit/recent?limit=N&zone_id=Z.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	var (
		entries []audit.Entry
		err     error
	)
	if zone := r.URL.Query().Get("zone_id"); zone != "" {
		entries, err = h.service.ByZone(ctx, domain.ZoneID(zone), limit)
	} else {
		entries, err = h.service.Recent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleTrace handles GET /system/audit/trace?classification_id=ID.
func (h *Handler) HandleTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.URL.Query().Get("classification_id")
	if id == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "classification_id is required"))
		return
	}

	entries, err := h.service.Trace(ctx, domain.ClassificationID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"classification_id": id,
		"entries":           entries,
	})
}

// HandleVerify handles GET /system/audit/verify, walking the hash chain.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Verify(ctx); err != nil {
		h.logger.ErrorContext(ctx, "audit chain verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"intact": false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"intact": true})
}
