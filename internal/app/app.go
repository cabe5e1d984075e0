package app

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/automation"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/handlers"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/services/orchestrator"
	"github.com/ternarybob/custos/internal/services/scheduler"
	"github.com/ternarybob/custos/internal/services/sessions"
	"github.com/ternarybob/custos/internal/services/tasks"
	"github.com/ternarybob/custos/internal/storage/badger"
)

// App holds all application components and dependencies. Everything is wired
// here, explicitly; no component reaches for a global.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	SessionService   interfaces.SessionService
	TaskService      *tasks.Service
	Orchestrator     *orchestrator.Service
	SchedulerService *scheduler.Service
	AutomationClient interfaces.AutomationClient

	AuthHandler    *handlers.AuthHandler
	TaskHandler    *handlers.TaskHandler
	SessionHandler *handlers.SessionHandler
	StatusHandler  *handlers.StatusHandler
}

// New creates the application with all dependencies wired
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.AutomationClient = automation.NewClient(
		automation.WithBaseURL(cfg.Automation.BaseURL),
		automation.WithHTTPClient(&http.Client{Timeout: cfg.Automation.RequestTimeout}),
		automation.WithRateLimit(cfg.Automation.RateLimit),
		automation.WithLogger(logger),
	)

	app.SessionService = sessions.NewService(
		storageManager.SessionStorage(),
		storageManager.LockManager(),
		&cfg.Sessions,
		logger,
	)

	app.TaskService = tasks.NewService(app.AutomationClient, storageManager.TaskStorage(), logger)

	app.Orchestrator = orchestrator.NewService(
		app.SessionService,
		app.TaskService,
		app.AutomationClient,
		cfg,
		logger,
	)

	app.SchedulerService = scheduler.NewService(app.Orchestrator, cfg, logger)

	app.AuthHandler = handlers.NewAuthHandler(app.Orchestrator, logger)
	app.TaskHandler = handlers.NewTaskHandler(app.Orchestrator, logger)
	app.SessionHandler = handlers.NewSessionHandler(app.SessionService, app.Orchestrator, cfg.Sessions.TTL, logger)
	app.StatusHandler = handlers.NewStatusHandler(app.Orchestrator, logger)

	if err := app.SchedulerService.Start(); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Badger.Path).
		Str("automation", cfg.Automation.BaseURL).
		Msg("Application initialized")

	return app, nil
}

// Close shuts down application components in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
