// Package main is the entry point for the recipe scheduler API server.
//
// It loads configuration, opens the event store and the delay queue backend,
// mounts the event and device handlers on the core chassis and serves HTTP
// until SIGINT or SIGTERM. With QUEUE_BACKEND=memory the queue only lives in
// this process, so an embedded worker pool dispatches reminders here too.
package main

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

	"golang.org/x/sync/errgroup"

	"recipescheduler/internal/api/handlers"
	"recipescheduler/internal/config"
	"recipescheduler/internal/core"
	"recipescheduler/internal/db"
	"recipescheduler/internal/external"
	"recipescheduler/internal/queue"
	"recipescheduler/internal/reminder"
	"recipescheduler/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("recipe scheduler API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"queue_backend", cfg.Queue.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	backend, err := queue.OpenBackend(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return err
	}

	tokens := db.NewPushTokenRepository(pool)
	srv, err := buildServer(cfg, logger, db.NewEventRepository(pool), tokens, backend.Queue)
	if err != nil {
		_ = backend.Close()
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = append(srv.Closers, backend.Close, func() error { pool.Close(); return nil })
	srv.HealthProbes = append(srv.HealthProbes, core.PingProbe{Label: "postgres", Ping: pool.Ping})
	if backend.Ping != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.PingProbe{Label: backend.Name, Ping: backend.Ping})
	}
	srv.MountRoutes()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gCtx, srv, cfg, logger) })

	if cfg.Queue.Backend == config.QueueBackendMemory {
		logger.Warn("memory queue backend: reminders are dispatched in-process and lost on restart")
		dispatcher := reminder.NewDispatcher(tokens, external.NewPushSender(cfg.Push, logger), reminder.NoopMetrics{}, nil, logger)
		workers := worker.NewPool(backend.Queue, dispatcher, poolConfig(cfg), nil, logger)
		g.Go(func() error { return workers.Run(gCtx) })
	}

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// buildServer wires the handlers onto a core.Server. Routes are not mounted
// so the caller can add probes and closers first.
func buildServer(cfg *config.Config, logger *slog.Logger, events handlers.EventStore, tokens handlers.TokenStore, producer queue.Producer) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	scheduler := reminder.NewScheduler(producer, cfg.Reminder.LeadDuration(), nil, logger)
	eventHandler := handlers.NewEventHandler(events, scheduler, srv.Validator, logger)
	deviceHandler := handlers.NewDeviceHandler(tokens, srv.Validator, logger)

	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars,
		eventHandler.RegisterRoutes,
		deviceHandler.RegisterRoutes,
	)
	return srv, nil
}

func poolConfig(cfg *config.Config) worker.PoolConfig {
	return worker.PoolConfig{
		Concurrency:  cfg.Reminder.WorkerConcurrency,
		BatchSize:    cfg.Queue.BatchSize,
		Lease:        cfg.Queue.Lease,
		PollInterval: cfg.Queue.PollInterval,
	}
}

// serveHTTP listens until ctx is cancelled, then drains in-flight requests.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	logger.Info("HTTP server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
