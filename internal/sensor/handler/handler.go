// Package handler wires standalone sensor analysis to HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackguard/internal/reading"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/platform/httputil"
	"trackguard/pkg/requestcontext"
)

// Analyzer scores one batch of sensor readings.
type Analyzer interface {
	Score(readings []reading.SensorReading) reading.ModalityScore
}

// Handler exposes one-off sensor analysis, outside the fusion pipeline.
type Handler struct {
	source   reading.SensorSource
	analyzer Analyzer
	logger   *slog.Logger
}

// New constructs a sensor handler.
func New(source reading.SensorSource, analyzer Analyzer, logger *slog.Logger) *Handler {
	return &Handler{source: source, analyzer: analyzer, logger: logger}
}

// Register mounts sensor endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sensor/analyze", h.HandleAnalyze)
}

type analyzeRequest struct {
	ZoneID   string `json:"zone_id"`
	Scenario string `json:"simulate_scenario,omitempty"`
}

type analyzeResponse struct {
	Readings []reading.SensorReading `json:"readings"`
	Score    reading.ModalityScore   `json:"score"`
}

// HandleAnalyze handles POST /sensor/analyze.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[analyzeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	zone, err := domain.ParseZoneID(req.ZoneID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	captured, err := h.source.Capture(ctx, zone, reading.Scenario(req.Scenario))
	if err != nil {
		h.logger.ErrorContext(ctx, "sensor capture failed",
			"request_id", requestcontext.RequestID(ctx),
			"zone_id", zone,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeUnavailable, "sensor source unavailable", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, analyzeResponse{
		Readings: captured,
		Score:    h.analyzer.Score(captured),
	})
}
