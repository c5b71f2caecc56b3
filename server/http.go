// Package server exposes the demo control plane over HTTP: the status feed
// the dashboard polls, the scenario trigger, liveness, and metrics.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paymentops/guardian/scenario"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler serves the control-plane endpoints.
type Handler struct {
	registry *scenario.Registry
	runner   *scenario.Runner
	logger   *slog.Logger
}

// NewHandler creates a handler over the run registry and scenario runner.
func NewHandler(registry *scenario.Registry, runner *scenario.Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		runner:   runner,
		logger:   logger,
	}
}

// RegisterHTTPHandlers registers all control-plane handlers:
//
//	GET  /status
//	POST /set_scenario
//	GET  /healthz
//	GET  /metrics
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("POST /set_scenario", h.handleSetScenario)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// handleStatus returns the current system snapshot. Always well-formed:
// before any scenario it reports a healthy network and an empty log feed.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Snapshot())
}

// scenarioRequest is the trigger payload.
type scenarioRequest struct {
	ScenarioType string `json:"scenario_type"`
}

// triggerResponse answers a trigger immediately; the run itself reports
// progress through /status.
type triggerResponse struct {
	Status string `json:"status"`
}

// handleSetScenario applies a scenario and launches the background
// analysis for failure scenarios. Responds without waiting for the run.
func (h *Handler) handleSetScenario(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ScenarioType == "" {
		writeError(w, http.StatusBadRequest, "scenario_type is required")
		return
	}

	status := h.runner.Trigger(req.ScenarioType)
	h.logger.Info("Scenario trigger",
		"scenario", req.ScenarioType,
		"status", status)

	switch status {
	case scenario.TriggerAccepted:
		writeJSON(w, http.StatusAccepted, triggerResponse{Status: "accepted"})
	case scenario.TriggerOK:
		writeJSON(w, http.StatusOK, triggerResponse{Status: "ok"})
	case scenario.TriggerBusy:
		writeJSON(w, http.StatusConflict, triggerResponse{Status: "busy"})
	default:
		writeError(w, http.StatusInternalServerError, "unexpected trigger status")
	}
}

// handleHealthz is the liveness probe.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequestLogging wraps next with one structured log line per request.
func RequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encode errors mean the response is already partially written.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
