package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/file-intake/internal/config"
	"github.com/kirillkom/file-intake/internal/core/ports"
	"github.com/kirillkom/file-intake/internal/core/usecase"
	"github.com/kirillkom/file-intake/internal/infrastructure/catalog"
	"github.com/kirillkom/file-intake/internal/infrastructure/extractor/ffprobe"
	"github.com/kirillkom/file-intake/internal/infrastructure/ledger/xlsx"
	"github.com/kirillkom/file-intake/internal/infrastructure/queue/memory"
	natsqueue "github.com/kirillkom/file-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/file-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/file-intake/internal/infrastructure/rules"
	"github.com/kirillkom/file-intake/internal/infrastructure/storage/box"
	"github.com/kirillkom/file-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/file-intake/internal/observability/metrics"
)

const (
	APIService    = "intake-api"
	WorkerService = "intake-worker"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Intake  *usecase.IntakeUseCase
	Worker  *usecase.Worker
	Catalog *catalog.Cache
	Ledger  *xlsx.Workbook
	Spool   *localfs.Spool

	// LocalQueue feeds the worker. In nats mode Relay moves published
	// tasks into it.
	LocalQueue *memory.Queue
	Relay      *natsqueue.Queue
	// Journal is nil unless POSTGRES_DSN is set.
	Journal *postgres.OutcomeJournal

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	location, err := time.LoadLocation(cfg.ReportingTimezone)
	if err != nil {
		return fail(fmt.Errorf("load reporting timezone %q: %w", cfg.ReportingTimezone, err))
	}
	tables, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return fail(fmt.Errorf("load rules: %w", err))
	}

	httpMetrics := metrics.NewHTTPServerMetrics(APIService)
	workerMetrics := metrics.NewWorkerMetrics(WorkerService)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:     2,
		BreakerEnabled:      cfg.ResilienceBreakerEnabled,
		BreakerOpenTimeout:  cfg.ResilienceBreakerOpenTimeout,
		Logger:              logger,
		OnStateChange:       workerMetrics.ObserveBreakerTransition,
	})

	ledger := xlsx.NewWorkbook(cfg.LedgerPath)
	if err := ledger.EnsureWorkbook(ctx); err != nil {
		return fail(fmt.Errorf("ensure ledger workbook: %w", err))
	}

	var source catalog.Source = ledger
	if cfg.CatalogSource == config.CatalogSourceYAML {
		source = catalog.NewFileSource(cfg.CatalogPath)
	}
	cache := catalog.NewCache(source, logger)

	spool, err := localfs.New(cfg.SpoolDir)
	if err != nil {
		return fail(fmt.Errorf("init spool: %w", err))
	}
	if removed, err := spool.Sweep(cfg.SpoolMaxAge); err != nil {
		logger.Warn("spool_sweep_failed", "dir", spool.Dir(), "error", err)
	} else if removed > 0 {
		logger.Info("spool_swept", "dir", spool.Dir(), "removed", removed)
	}
	extractor := ffprobe.New(cfg.FFprobePath, spool, cfg.FFprobeTimeout)

	boxClient := box.New(box.Config{
		BaseURL:           cfg.BoxBaseURL,
		ClientID:          cfg.BoxClientID,
		ClientSecret:      cfg.BoxClientSecret,
		SubjectType:       cfg.BoxSubjectType,
		SubjectID:         cfg.BoxSubjectID,
		RequestsPerSecond: cfg.BoxRequestsPerSecond,
		Burst:             cfg.BoxBurst,
		MaxFolderDepth:    cfg.MaxFolderDepth,
		Timeout:           cfg.BoxTimeout,
	}, executor, logger)
	storage := box.NewStorage(boxClient)

	var (
		journal     *postgres.OutcomeJournal
		journalPort ports.OutcomeJournal
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		journal = postgres.NewOutcomeJournal(db)
		if err := journal.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("ensure schema: %w", err))
		}
		journalPort = journal
	}

	localQueue := memory.New()
	closers = append(closers, localQueue.Close)

	var (
		relay *natsqueue.Queue
		sink  ports.TaskSink = localQueue
	)
	switch cfg.QueueMode {
	case config.QueueModeMemory:
	case config.QueueModeNATS:
		relay, err = natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			QueueGroup:         cfg.NATSQueueGroup,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return fail(fmt.Errorf("init message queue: %w", err))
		}
		closers = append(closers, relay.Close)
		sink = relay
	default:
		return fail(fmt.Errorf("unknown QUEUE_MODE %q", cfg.QueueMode))
	}

	policy := usecase.ParseCatalogPolicy(cfg.IgnoreListPolicy)
	gate := usecase.NewGate(cache, ledger, tables.NeverProcessKeywords, policy, logger)
	classifier := usecase.NewClassifier(tables, usecase.ParseClientFallback(cfg.ClientFallback))
	processor := usecase.NewProcessIntakeUseCase(storage, extractor, ledger, cache, gate, classifier, usecase.ProcessOptions{
		ReportingLocation: location,
		FileLinkBase:      cfg.FileLinkBase,
		CatalogPolicy:     policy,
		Logger:            logger,
	})
	worker := usecase.NewWorker(localQueue, processor, usecase.WorkerOptions{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Concurrency:  cfg.WorkerConcurrency,
		Logger:       logger,
		Observer:     workerMetrics,
		Journal:      journalPort,
	})

	logger.Info("bootstrap_complete",
		"queue_mode", cfg.QueueMode,
		"catalog_source", cfg.CatalogSource,
		"ledger_path", ledger.Path(),
		"journal_enabled", journal != nil,
		"reporting_timezone", location.String(),
		"max_retries", cfg.MaxRetries,
		"retry_backoff", cfg.RetryBackoff.String(),
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Intake:  usecase.NewIntakeUseCase(sink),
		Worker:  worker,
		Catalog: cache,
		Ledger:  ledger,
		Spool:   spool,

		LocalQueue: localQueue,
		Relay:      relay,
		Journal:    journal,

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: closeAll,
	}, nil
}

// OutcomeReader returns the journal as a read port, or nil when disabled.
func (a *App) OutcomeReader() ports.OutcomeReader {
	if a.Journal == nil {
		return nil
	}
	return a.Journal
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
