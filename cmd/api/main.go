package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/file-intake/internal/adapters/http"
	"github.com/kirillkom/file-intake/internal/bootstrap"
	"github.com/kirillkom/file-intake/internal/config"
	"github.com/kirillkom/file-intake/internal/observability/logging"
	"github.com/kirillkom/file-intake/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger, closeLog, err := logging.NewLogger(bootstrap.APIService, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Intake, app.Catalog, app.Ledger).
		WithLogger(logger).
		WithMetrics(app.HTTPMetrics, metrics.CombinedHandler(app.HTTPMetrics.Gatherer(), app.WorkerMetrics.Gatherer()))
	if reader := app.OutcomeReader(); reader != nil {
		router.WithOutcomes(reader)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// In memory mode the api process owns the queue, so it also runs the worker.
	var wg sync.WaitGroup
	if cfg.QueueMode == config.QueueModeMemory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker_stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "queue_mode", cfg.QueueMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	wg.Wait()
	logger.Info("api_stopped")
}
