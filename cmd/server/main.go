package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/collab"
	"github.com/p-n-ai/pai-learn/internal/learner"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := a.learners.Flush(shutdownCtx); err != nil {
		slog.Error("failed to flush pending progress", "error", err)
	}
}

// newLogger builds the process logger from LEARN_LOG_* settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: cfg.AddSource}
	switch strings.ToLower(cfg.Level) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app holds the wired components and the resources to release on exit.
type app struct {
	handler  http.Handler
	learners *learner.Service
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]server.Check{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	var collabClient *collab.Client
	if cfg.NeedsCollab() {
		c, err := collab.NewClient(cfg.Collab.URL,
			collab.WithHTTPClient(&http.Client{Timeout: cfg.Collab.Timeout}),
		)
		if err != nil {
			return fail(err)
		}
		collabClient = c
		checks["collab"] = c.HealthCheck
	}

	var source catalog.Source
	switch cfg.Catalog.Source {
	case config.CatalogFile:
		loader, err := catalog.NewLoader(cfg.Catalog.Path)
		if err != nil {
			return fail(fmt.Errorf("load catalog: %w", err))
		}
		source = loader
	default:
		source = collabClient
	}

	var store progress.Store
	var events progress.EventLogger = progress.NopEventLogger{}
	switch cfg.Progress.Store {
	case config.StorePostgres:
		db, err := database.New(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx, progress.Migration); err != nil {
			return fail(err)
		}
		pg, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		store = pg
		events = progress.NewPostgresEventLogger(db.Pool)
		checks["database"] = db.HealthCheck
	case config.StoreCollab:
		store = collabClient
	default:
		store = progress.NewMemoryStore()
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		store = progress.NewCachedStore(store, c, cfg.Cache.TTL)
		checks["cache"] = c.HealthCheck
	}

	retries := cfg.Progress.SaveRetries
	if retries == 0 {
		retries = -1 // single attempt
	}
	learners, err := learner.NewService(learner.Config{
		Catalog:        source,
		Store:          store,
		Events:         events,
		ContentBaseURL: cfg.Content.BaseURL,
		SaveRetries:    retries,
		SaveMaxElapsed: cfg.Progress.SaveMaxElapsed,
	})
	if err != nil {
		return fail(err)
	}
	a.learners = learners

	srv, err := server.New(server.Config{
		Learners: learners,
		Store:    store,
		Catalog:  source,
		Checks:   checks,
	})
	if err != nil {
		return fail(err)
	}
	a.handler = srv.Handler()

	slog.Info("components wired",
		"catalog_source", cfg.Catalog.Source,
		"progress_store", cfg.Progress.Store,
		"cache", cfg.Cache.URL != "",
	)
	return a, nil
}
