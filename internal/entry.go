// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jotter/internal/api"
	"github.com/starford/jotter/internal/checksum"
	"github.com/starford/jotter/internal/ingress"
	"github.com/starford/jotter/internal/pipeline"
	"github.com/starford/jotter/internal/recordservice"
	"github.com/starford/jotter/internal/sse"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/store"
	"github.com/starford/jotter/internal/watcher"
)

// ErrPasswordRequired is returned by Open when encryption is enabled and no
// password was supplied.
var ErrPasswordRequired = errors.New("store encryption is enabled but no password was given")

// Runtime is a loaded store behind a running pipeline.
type Runtime struct {
	Config   *Config
	Logger   *slog.Logger
	Service  *recordservice.Service
	Pipeline *pipeline.Service
	Broker   *sse.Broker

	tracker  *checksum.Tracker
	dataFile string
}

// Open builds the store, starts the pipeline and loads the persistence file.
// The caller must Close the returned Runtime.
func Open(ctx context.Context, opts ...Option) (*Runtime, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.Store.Encryption && app.password == "" {
		return nil, ErrPasswordRequired
	}

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Store.Path, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	tracker := checksum.NewTracker()
	provider, err := storage.NewFS(cfg.Store.Path, storage.WithTracker(tracker))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	dataFile, err := provider.Abs(cfg.Store.File)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)

	pipe := pipeline.New(store.New(provider, store.WithFile(cfg.Store.File)),
		pipeline.WithLogger(logger),
		pipeline.WithShutdownPolicy(pipeline.ShutdownPolicy(cfg.Pipeline.Shutdown)),
		pipeline.WithUndoDepth(cfg.Pipeline.UndoDepth),
		pipeline.WithEventCallback(broker.PublishRecordEvent),
	)
	if err := pipe.Start(); err != nil {
		broker.Close()
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Service:  recordservice.New(pipe, recordservice.WithTimeout(cfg.Pipeline.ResponseTimeout)),
		Pipeline: pipe,
		Broker:   broker,
		tracker:  tracker,
		dataFile: dataFile,
	}

	password := ""
	if cfg.Store.Encryption {
		password = app.password
	}
	code, err := rt.Service.Unlock(ctx, password)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Seed the tracker so the watcher does not reload the file we just read.
	if sum, err := checksum.File(dataFile); err == nil {
		tracker.Set(dataFile, sum)
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("checksum of data file failed", slog.String("path", dataFile), slog.String("error", err.Error()))
	}

	logger.Debug("Store opened",
		slog.String("path", dataFile),
		slog.String("code", code.String()),
		slog.Bool("encryption", cfg.Store.Encryption))

	return rt, nil
}

// Close stops the pipeline according to the configured shutdown policy.
func (rt *Runtime) Close() {
	rt.Pipeline.Stop()
	rt.Broker.Close()
}

// Router builds the HTTP handler: health endpoints plus the API under /api.
func (rt *Runtime) Router() http.Handler {
	cfg := rt.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"pending": rt.Pipeline.Pending(),
			"clients": rt.Broker.ClientCount(),
		})
	})

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(rt.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.Broker))

	return r
}

// Run opens the store and serves the HTTP API, the framed ingress and the
// file watcher until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := Open(ctx, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	logger := rt.Logger

	logger.Info("Configuration loaded",
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Bool("ingress_enabled", cfg.Ingress.Enabled),
		slog.String("ingress_address", cfg.Ingress.Address()),
		slog.String("data_file", rt.dataFile),
		slog.String("shutdown_policy", cfg.Pipeline.Shutdown),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watcher.Watch(gCtx, rt.dataFile, rt.tracker, rt.Service.Reload, logger, cfg.Watch.Debounce)
		})
	}

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:              cfg.App.HTTP.Address(),
			Handler:           rt.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	if cfg.Ingress.Enabled {
		srv := ingress.NewServer(ingress.LogHandler{Logger: logger},
			ingress.WithLogger(logger),
			ingress.WithBacklog(cfg.Ingress.Backlog),
			ingress.WithMaxPayload(cfg.Ingress.MaxPayload),
		)
		g.Go(func() error {
			if err := srv.ListenAndServe(gCtx, cfg.Ingress.Address()); err != nil {
				return fmt.Errorf("ingress error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		cancel()

		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
