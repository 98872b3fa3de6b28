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

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/autosave"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/library"
	"github.com/starford/notegraph/internal/session"
	"github.com/starford/notegraph/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logOut := app.logOut
	if logOut == nil {
		logOut = os.Stdout
	}
	logger := newLogger(cfg, logOut)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("autosave_delay", cfg.Editor.AutosaveDelay),
		slog.Bool("search_enabled", cfg.Search.Enabled))

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.Close()

	// SSE broker.
	broker := sse.NewBroker(sse.WithThrottle(2*time.Second), sse.WithLogger(logger))
	defer broker.Close()

	// In-memory library: link index, folder tree and tag counts.
	lib := library.New(v.notes, library.WithLogger(logger))
	defer lib.Close()
	if err := lib.Reload(ctx); err != nil {
		logger.Warn("initial library load failed", slog.String("error", err.Error()))
	}

	// Single editing session with autosave.
	sess := session.New(v.notes, lib,
		session.WithLogger(logger),
		session.WithPublisher(broker),
		session.WithHistoryLimit(cfg.Editor.HistoryLimit),
		session.WithAutosave(
			autosave.WithDelay(cfg.Editor.AutosaveDelay),
			autosave.WithIndicator(cfg.Editor.SavedIndicator),
		),
	)
	// Broken-link styling depends on the note list, so drop cached previews.
	lib.OnReload(func(uint64) { sess.InvalidatePreview() })

	apiRouter := api.NewRouter(api.Deps{
		Notes:   v.notes,
		Library: lib,
		Session: sess,
		Images:  attachments.New(v.store),
		Events:  broker,
		Settings: api.Settings{
			Name:          cfg.App.Name,
			Tagline:       cfg.App.Tagline,
			Version:       cfg.App.Version,
			SearchEnabled: cfg.Search.Enabled,
			AuthEnabled:   cfg.Auth.AuthEnabled(),
			Token:         cfg.Auth.Token,
		},
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health", healthOK)
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher: catalog update, debounced library reload, SSE.
	g.Go(func() error {
		err := index.Watch(gCtx, v.db, v.store, cfg.Vault.Path, logger, func(kind, path string) {
			lib.ScheduleReload()
			broker.PublishNoteEvent(kind, path)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		// Persist whatever the editor still holds.
		sess.Close(shutdownCtx)

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits after a signal.
var errShutdown = errors.New("shutdown")

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
