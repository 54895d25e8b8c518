package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
	"github.com/seolens/seolens/internal/queue"
	auditsvc "github.com/seolens/seolens/internal/services/audit"
	"github.com/seolens/seolens/internal/services/crawler"
	"github.com/seolens/seolens/internal/services/insights"
	"github.com/seolens/seolens/internal/services/report"
	"github.com/seolens/seolens/internal/services/scheduler"
	badgerstore "github.com/seolens/seolens/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badgerstore.Manager
	QueueManager   interfaces.QueueManager
	Worker         *queue.Worker

	AuditService     *auditsvc.Service
	AuditHandler     *auditsvc.Handler
	SchedulerService *scheduler.Service
	CrawlerService   *crawler.Service
	ReportService    *report.Service
	InsightService   *insights.Service
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstore.NewManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	queueManager, err := queue.NewBadgerManager(
		storageManager.DB().Badger(),
		logger,
		cfg.Queue.Name,
		common.Duration(cfg.Queue.VisibilityTimeout, 5*time.Minute),
		cfg.Queue.MaxAttempts,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	app.QueueManager = queueManager

	app.CrawlerService = crawler.NewService(cfg, logger)
	app.ReportService = report.NewService(cfg, logger)
	app.InsightService = insights.NewService(cfg, logger)

	app.AuditService = auditsvc.NewService(storageManager, queueManager, logger)
	app.AuditHandler = auditsvc.NewHandler(
		storageManager,
		app.CrawlerService,
		app.ReportService,
		app.InsightService,
		cfg,
		logger,
	)

	app.SchedulerService = scheduler.NewService(storageManager, queueManager, app.AuditService, cfg, logger)

	worker := queue.NewWorker(queueManager, storageManager.JobHistoryStorage(), queue.WorkerConfig{
		PollInterval: common.Duration(cfg.Queue.PollInterval, time.Second),
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryBackoff: common.Duration(cfg.Queue.RetryBackoff, 5*time.Second),
	}, logger)
	worker.RegisterHandler(models.JobTypeRunAudit, app.AuditHandler.HandleRunAudit)
	worker.RegisterFailureHandler(models.JobTypeRunAudit, app.AuditHandler.FinalizeFailed)
	worker.RegisterHandler(models.JobTypeGenerateReport, app.AuditHandler.HandleGenerateReport)
	worker.RegisterHandler(models.JobTypeScheduleCheck, app.SchedulerService.HandleScheduleCheck)
	app.Worker = worker

	logger.Info().Msg("Application initialized")
	return app, nil
}

// Start launches the worker and, when enabled, the scheduler
func (a *App) Start() error {
	if err := a.Worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
	}

	return nil
}

// Close shuts components down in dependency order
func (a *App) Close() {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}
	if a.Worker != nil {
		if err := a.Worker.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Worker stop failed")
		}
	}
	if a.QueueManager != nil {
		if err := a.QueueManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Queue close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}

	a.Logger.Info().Msg("Application stopped")
}
