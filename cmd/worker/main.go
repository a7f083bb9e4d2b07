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

	"github.com/kirillkom/file-intake/internal/bootstrap"
	"github.com/kirillkom/file-intake/internal/config"
	"github.com/kirillkom/file-intake/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger, closeLog, err := logging.NewLogger(bootstrap.WorkerService, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if cfg.QueueMode != config.QueueModeNATS {
		logger.Error("worker_requires_nats", "queue_mode", cfg.QueueMode)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", app.WorkerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.Relay.Relay(ctx, app.LocalQueue); err != nil {
			logger.Error("nats_relay_stopped", "error", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.Worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker_stopped", "error", err)
		}
	}()

	logger.Info("worker_process_started", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("worker_stopped_cleanly")
}
