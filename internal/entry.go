// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/lookback/internal/api"
	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/mcpserver"
	"github.com/starford/lookback/internal/memoryservice"
	"github.com/starford/lookback/internal/sse"
	"github.com/starford/lookback/internal/store"
	"github.com/starford/lookback/internal/watch"
)

// session holds what every entry point shares.
type session struct {
	cfg    *Config
	logger *slog.Logger
	store  store.CatalogStore
	svc    *memoryservice.Service
}

func setup(opts []Option, events memoryservice.Events) (*session, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("archive_path", cfg.Archive.Path),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("timezone", cfg.View.Location().String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	svc := memoryservice.New(st, events, logger,
		memoryservice.WithConcurrency(cfg.Ingest.Concurrency),
		memoryservice.WithMinMediaBytes(cfg.Ingest.MinMediaBytes),
		memoryservice.WithAutosave(cfg.Ingest.Autosave),
		memoryservice.WithFlashbacks(cfg.View.Flashbacks),
		memoryservice.WithTimeZone(cfg.View.Location()),
	)

	return &session{cfg: cfg, logger: logger, store: st, svc: svc}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// load restores the persisted catalog, then ingests the configured archive
// when asked to.
func (rt *session) load(ctx context.Context) {
	n, err := rt.svc.Restore(ctx)
	switch {
	case errors.Is(err, apperr.ErrNoPersisted):
		rt.logger.Info("No persisted catalog")
	case err != nil:
		rt.logger.Warn("restore failed", slog.String("error", err.Error()))
	default:
		rt.logger.Info("Catalog restored", slog.Int("memories", n))
	}

	if rt.cfg.Archive.IngestOnStart {
		if _, err := rt.svc.IngestFolder(ctx, rt.cfg.Archive.Path); err != nil {
			rt.logger.Warn("initial ingest failed", slog.String("error", err.Error()))
		}
	}
}

// onArchiveChange re-ingests after the watcher settles.
func (rt *session) onArchiveChange(ctx context.Context) {
	var err error
	if rt.svc.Root() == "" {
		_, err = rt.svc.IngestFolder(ctx, rt.cfg.Archive.Path)
	} else {
		_, err = rt.svc.Reingest(ctx)
	}
	if err != nil && !errors.Is(err, apperr.ErrSuperseded) {
		rt.logger.Warn("re-ingest failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(opts, broker)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	cfg, logger := rt.cfg, rt.logger

	rt.load(ctx)

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		_, _ = fmt.Fprintf(w, `{"status":"ok","memories":%d}`, rt.svc.Len())
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the archive and re-ingest on changes.
	if cfg.Archive.Watch {
		g.Go(func() error {
			err := watch.Watch(gCtx, cfg.Archive.Path, cfg.Archive.Debounce, logger, rt.onArchiveChange)
			if err != nil {
				logger.Warn("archive watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the watcher goroutine once the server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	rt, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	rt.load(ctx)

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}

// IngestOnce ingests path and saves the catalog, then exits.
func IngestOnce(ctx context.Context, path string, opts ...Option) (int, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return 0, err
	}
	defer rt.store.Close()

	res, err := rt.svc.IngestFolder(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", path, err)
	}
	// With autosave on, IngestFolder has already saved.
	if !rt.cfg.Ingest.Autosave {
		if _, err := rt.svc.Save(ctx); err != nil {
			return 0, err
		}
	}
	rt.logger.Info("Ingest complete",
		slog.String("run_id", res.RunID),
		slog.String("root", res.Root),
		slog.Int("memories", res.Count))
	return res.Count, nil
}
