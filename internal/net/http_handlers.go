// Package net serves the engine's external surfaces: the inspector
// WebSocket plus plain HTTP endpoints for health and diagnostics.
package net

import (
	"encoding/json"
	nethttp "net/http"
	"strconv"
	"time"

	"starhollow/engine/internal/journal"
	"starhollow/engine/internal/net/inspector"
	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/telemetry"
	"starhollow/engine/logging"
)

type HTTPHandlerConfig struct {
	Logger  telemetry.Logger
	Metrics *logging.Metrics
	Journal *journal.Journal
}

// NewHTTPHandler assembles the engine's HTTP surface around the runtime and
// the inspector hub.
func NewHTTPHandler(rt *pipeline.Runtime, hub *inspector.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                       `json:"status"`
			ServerTime int64                        `json:"serverTime"`
			Pipeline   pipeline.DiagnosticsSnapshot `json:"pipeline"`
			Sessions   int                          `json:"inspectorSessions"`
			Journal    journal.Summary              `json:"journal"`
			Telemetry  map[string]uint64            `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Pipeline:   rt.Diagnostics(),
			Sessions:   hub.SessionCount(),
			Journal:    cfg.Journal.Summarize(),
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.TelemetrySnapshot()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
		}
	})

	mux.HandleFunc("/journal", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit := 64
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if value, err := strconv.Atoi(raw); err == nil && value > 0 {
				limit = value
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cfg.Journal.Recent(limit)); err != nil {
			logger.Printf("failed to encode journal: %v", err)
		}
	})

	wsHandler := inspector.NewHandler(hub, logger)
	mux.HandleFunc("/ws", wsHandler.Handle)

	return mux
}
