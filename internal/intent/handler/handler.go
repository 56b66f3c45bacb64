// Package handler wires the fusion engine to HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackguard/internal/intent"
	"trackguard/internal/reading"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
	"trackguard/pkg/platform/httputil"
	"trackguard/pkg/requestcontext"
)

// Service defines the fusion operation the HTTP layer needs.
type Service interface {
	Classify(ctx context.Context, req intent.ClassifyRequest) (*intent.Classification, error)
}

// Handler wires the classify endpoint to the fusion service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an intent handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts intent endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/intent/classify", h.HandleClassify)
}

type classifyRequest struct {
	ZoneID string `json:"zone_id"`
	// RunVision and RunSensor default to true when omitted; a modality
	// switched off takes the fallback path and degrades the result.
	RunVision *bool  `json:"run_vision_analysis,omitempty"`
	RunSensor *bool  `json:"run_sensor_analysis,omitempty"`
	Scenario  string `json:"simulate_scenario,omitempty"`
	NoWait    bool   `json:"no_wait,omitempty"`
}

func enabled(flag *bool) bool { return flag == nil || *flag }

var validScenarios = map[reading.Scenario]bool{
	reading.ScenarioNone:       true,
	reading.ScenarioNormal:     true,
	reading.ScenarioSuspicious: true,
	reading.ScenarioTampering:  true,
	reading.ScenarioNightTheft: true,
}

// HandleClassify handles POST /intent/classify.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[classifyRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	zone, err := domain.ParseZoneID(req.ZoneID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scenario := reading.Scenario(req.Scenario)
	if !validScenarios[scenario] {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown scenario"))
		return
	}

	cls, err := h.service.Classify(ctx, intent.ClassifyRequest{
		ZoneID:     zone,
		Scenario:   scenario,
		SkipVision: !enabled(req.RunVision),
		SkipSensor: !enabled(req.RunSensor),
		NoWait:     req.NoWait,
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeBusy) {
			h.logger.ErrorContext(ctx, "classification failed",
				"request_id", requestcontext.RequestID(ctx),
				"zone_id", zone,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cls)
}
