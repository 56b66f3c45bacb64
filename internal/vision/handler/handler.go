// Package handler wires standalone vision analysis to HTTP.
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

// Analyzer scores one vision reading.
type Analyzer interface {
	Score(r reading.VisionReading) reading.ModalityScore
}

// Handler exposes one-off vision analysis, outside the fusion pipeline.
// Useful for operator spot checks and source calibration.
type Handler struct {
	source   reading.VisionSource
	analyzer Analyzer
	logger   *slog.Logger
}

// New constructs a vision handler.
func New(source reading.VisionSource, analyzer Analyzer, logger *slog.Logger) *Handler {
	return &Handler{source: source, analyzer: analyzer, logger: logger}
}

// Register mounts vision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vision/analyze", h.HandleAnalyze)
}

type analyzeRequest struct {
	ZoneID string `json:"zone_id"`
	// ImageSource names the capture origin (cctv, drone, upload). It is
	// echoed as the reading's source id; simulated captures default it.
	ImageSource string `json:"image_source,omitempty"`
	Scenario    string `json:"simulate_scenario,omitempty"`
}

type analyzeResponse struct {
	Reading reading.VisionReading `json:"reading"`
	Score   reading.ModalityScore `json:"score"`
}

// HandleAnalyze handles POST /vision/analyze.
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
		h.logger.ErrorContext(ctx, "vision capture failed",
			"request_id", requestcontext.RequestID(ctx),
			"zone_id", zone,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeUnavailable, "vision source unavailable", err))
		return
	}

	if req.ImageSource != "" {
		captured.SourceID = req.ImageSource + "-" + zone.String()
	}

	httputil.WriteJSON(w, http.StatusOK, analyzeResponse{
		Reading: captured,
		Score:   h.analyzer.Score(captured),
	})
}
