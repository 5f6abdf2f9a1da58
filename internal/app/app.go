// Package app is the composition root: it loads configuration, builds the
// logging router, assembles the pipeline around the demo worker, and serves
// the inspector surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"starhollow/engine/internal/audioout"
	"starhollow/engine/internal/journal"
	enginenet "starhollow/engine/internal/net"
	"starhollow/engine/internal/net/inspector"
	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/script"
	"starhollow/engine/internal/telemetry"
	"starhollow/engine/logging"
	loggingSinks "starhollow/engine/logging/sinks"
)

type Options struct {
	ConfigPath string
	Logger     telemetry.Logger
}

func Run(ctx context.Context, opts Options) error {
	telemetryLogger := opts.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fileCfg, err := LoadFileConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	fileCfg.ApplyEnv(telemetryLogger)

	router, err := buildRouter(fileCfg, telemetryLogger)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	metrics := logging.NewMetrics()
	deps := pipeline.Deps{
		Logger:    telemetryLogger,
		Metrics:   telemetry.WrapMetrics(metrics),
		Clock:     logging.SystemClock{},
		Publisher: router,
	}

	maxFrames, maxAge := fileCfg.JournalRetention()
	jrnl := journal.New(maxFrames, maxAge)
	stallPolicy := journal.NewStallPolicy()

	var audioBackend *audioout.Backend
	if fileCfg.Audio.Enabled {
		audioBackend = audioout.NewBackend(telemetryLogger)
		if err := audioBackend.Initialize(); err != nil {
			telemetryLogger.Printf("audio disabled: %v", err)
			audioBackend = nil
		} else {
			defer audioBackend.Close()
		}
	}

	worker := script.NewOrbiter(fileCfg.SceneConfig(telemetryLogger))

	var rt *pipeline.Runtime
	var hub *inspector.Hub
	hooks := pipeline.Hooks{
		FrameTriggered: func(uint64) {
			stallPolicy.NoteTick()
		},
		FrameApplied: func(stats pipeline.FrameStats) {
			jrnl.Append(journal.Record{
				Frame:    stats.Frame,
				Applied:  stats.Applied,
				Rejected: stats.Rejected,
				Synced:   stats.Synced,
				Reaped:   stats.Reaped,
				Duration: stats.Duration,
				At:       time.Now(),
			})
			if hub != nil {
				hub.BroadcastState()
			}
			if audioBackend != nil {
				audioBackend.Sync(rt.Stores())
			}
			if signal, ok := stallPolicy.Consume(); ok {
				telemetryLogger.Printf("worker falling behind: %s", signal)
			}
		},
		FrameSkipped: func(frame uint64, consecutive int) {
			stallPolicy.NoteSkip(frame, consecutive)
		},
	}

	rt = pipeline.NewRuntime(fileCfg.PipelineConfig(telemetryLogger), deps, worker, hooks)
	worker.Bind(rt)
	hub = inspector.NewHub(rt, telemetryLogger, deps.Metrics, router)

	stop := make(chan struct{})
	runErr := make(chan error, 1)
	go func() {
		runErr <- rt.Run(stop)
	}()

	handler := enginenet.NewHTTPHandler(rt, hub, enginenet.HTTPHandlerConfig{
		Logger:  telemetryLogger,
		Metrics: metrics,
		Journal: jrnl,
	})

	srv := &http.Server{Addr: fileCfg.ListenAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	telemetryLogger.Printf("engine listening on %s", srv.Addr)
	serveErr := srv.ListenAndServe()

	close(stop)
	if err := <-runErr; err != nil {
		telemetryLogger.Printf("pipeline shutdown: %v", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	return nil
}

func buildRouter(cfg FileConfig, logger telemetry.Logger) (*logging.Router, error) {
	logCfg := logging.DefaultConfig()
	if len(cfg.Logging.Sinks) > 0 {
		logCfg.EnabledSinks = cfg.Logging.Sinks
	}
	if cfg.Logging.BufferSize > 0 {
		logCfg.BufferSize = cfg.Logging.BufferSize
	}
	switch cfg.Logging.MinimumSeverity {
	case "":
	case "debug":
		logCfg.MinimumSeverity = logging.SeverityDebug
	case "info":
		logCfg.MinimumSeverity = logging.SeverityInfo
	case "warn":
		logCfg.MinimumSeverity = logging.SeverityWarn
	case "error":
		logCfg.MinimumSeverity = logging.SeverityError
	default:
		logger.Printf("unknown minimumSeverity %q, using info", cfg.Logging.MinimumSeverity)
	}
	if cfg.Logging.JSONFilePath != "" {
		logCfg.JSON.FilePath = cfg.Logging.JSONFilePath
	}

	var sinks []logging.NamedSink
	if logCfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console),
		})
	}
	if logCfg.HasSink("json") && logCfg.JSON.FilePath != "" {
		file, err := os.OpenFile(logCfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log %s: %w", logCfg.JSON.FilePath, err)
		}
		sinks = append(sinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logCfg.JSON.FlushInterval),
		})
	}
	return logging.NewRouter(logging.SystemClock{}, logCfg, sinks)
}
