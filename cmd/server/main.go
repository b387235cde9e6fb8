package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/dgallion1/folio/internal/api"
	"github.com/dgallion1/folio/internal/config"
	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/pipeline"
	"github.com/dgallion1/folio/internal/position"
)

func main() {
	log := newLogger(slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log = newLogger(cfg.SlogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := newBackend(cfg)
	if err != nil {
		log.Error("init measurement backend", "backend", cfg.MeasureBackend, "error", err)
		os.Exit(1)
	}

	var store position.Store = position.NewMemoryStore()
	if cfg.PositionStoreURL != "" {
		remote := position.NewRemoteStore(cfg.PositionStoreURL, cfg.PositionStoreKey)
		defer remote.Close()
		store = remote
	}

	orch := pipeline.NewOrchestrator(cfg, backend, store, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting folio", "port", cfg.Port, "backend", cfg.MeasureBackend, "workers", cfg.LayoutWorkers)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newBackend(cfg config.Config) (measure.Backend, error) {
	if cfg.MeasureBackend == config.BackendCells {
		return measure.NewCells(cfg.EastAsianWidth), nil
	}
	return measure.NewCanvas()
}
