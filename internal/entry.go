// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cadenza/internal/api"
	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/grading"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/inbox"
	"github.com/starford/cadenza/internal/mcpserver"
	"github.com/starford/cadenza/internal/models"
	"github.com/starford/cadenza/internal/sse"
	"github.com/starford/cadenza/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and installs it as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// services opens the gradebook and builds the grading service on top of it.
// The caller closes the returned DB.
func (a *application) services(logger *slog.Logger, publisher gradingservice.Publisher) (*gradingservice.Service, *gradebook.DB, error) {
	cfg := a.config

	db, err := gradebook.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init gradebook: %w", err)
	}

	engine := grading.NewEngine(cfg.Grading.EngineOptions(logger)...)
	svc := gradingservice.New(engine, db,
		gradingservice.WithPublisher(publisher),
		gradingservice.WithTimeout(cfg.Grading.Timeout),
		gradingservice.WithConcurrency(cfg.Grading.BatchConcurrency),
		gradingservice.WithLogger(logger),
	)
	return svc, db, nil
}

// Run starts the HTTP server (and the inbox watcher, when enabled) until
// ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.Float64("position_tolerance", cfg.Grading.PositionTolerance),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, db, err := app.services(logger, broker)
	if err != nil {
		return err
	}
	defer db.Close()

	var box *inbox.Inbox
	var inboxRoot string
	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		inboxRoot = store.Root()
		box = inbox.New(store, svc, inbox.Defaults{
			Semitones: cfg.Inbox.DefaultSemitones,
			MaxPoints: cfg.Inbox.DefaultMaxPoints,
		}, logger)

		if err := box.Sync(ctx); err != nil {
			logger.Warn("initial inbox sync failed", slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(svc, api.RouterConfig{
		AuthEnabled:  cfg.Auth.AuthEnabled(),
		Token:        cfg.Auth.Token,
		MaxBodyBytes: cfg.Grading.MaxUploadBytes,
		Events:       broker,
		Inbox:        box,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if box != nil {
		g.Go(func() error {
			return box.Watch(gCtx, inboxRoot)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	svc, db, err := app.services(logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Evaluate grades one student file against a reference with the
// configured tolerances. Nothing is recorded.
func Evaluate(ctx context.Context, reference, student []byte, semitones int, opts ...Option) (models.EvaluationReport, error) {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return models.EvaluationReport{}, err
	}
	logger := app.logger()

	engine := grading.NewEngine(app.config.Grading.EngineOptions(logger)...)
	svc := gradingservice.New(engine, nil, gradingservice.WithTimeout(app.config.Grading.Timeout))
	return svc.Evaluate(ctx, reference, student, semitones)
}
