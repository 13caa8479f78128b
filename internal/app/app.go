// -----------------------------------------------------------------------
// Last Modified: Friday, 9th October 2026 11:26:37 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/handlers"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/services/ensemble"
	"github.com/ternarybob/advisor/internal/services/events"
	"github.com/ternarybob/advisor/internal/services/market"
	"github.com/ternarybob/advisor/internal/services/predictors"
	"github.com/ternarybob/advisor/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Ensemble services
	Predictor       interfaces.ModelPredictor
	MarketProvider  *market.StaticProvider
	Orchestrator    *ensemble.Orchestrator
	EnsembleService *ensemble.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	EnsembleHandler *handlers.EnsembleHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to subscribe logger to events")
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	logger.Info().
		Str("model_provider", cfg.Models.Provider).
		Str("default_mode", cfg.Ensemble.DefaultMode).
		Str("default_depth", cfg.Ensemble.DefaultDepth).
		Bool("websocket_enabled", cfg.WebSocket.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the ensemble pipeline in dependency order:
// predictor -> adapter -> orchestrator -> service
func (a *App) initServices() error {
	predictor, err := predictors.NewPredictor(&a.Config.Models, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create model predictor: %w", err)
	}
	a.Predictor = predictor

	adapter := ensemble.NewAdapter(predictor, ensemble.AdapterOptions{
		Timeout:   a.Config.Models.TimeoutDuration(),
		RateLimit: a.Config.Models.RateLimit,
		Burst:     a.Config.Models.Burst,
	}, a.Logger)

	a.MarketProvider = market.NewStaticProvider(a.Config.Market.MarketContext())

	a.Orchestrator = ensemble.NewOrchestrator(
		ensemble.NewRoleResolver(),
		ensemble.NewDefaultRegistry(),
		adapter,
		a.MarketProvider,
		ensemble.OrchestratorConfig{
			CoordinatorModelLimit: a.Config.Ensemble.CoordinatorModelLimit,
			MaxConcurrency:        a.Config.Ensemble.MaxConcurrency,
			AgentTimeout:          a.Config.Ensemble.AgentTimeoutDuration(),
		},
		a.Logger,
	)

	a.EnsembleService = ensemble.NewService(
		a.Orchestrator,
		a.StorageManager,
		a.EventService,
		ensemble.ServiceConfig{
			DefaultMode:  models.CollaborationMode(a.Config.Ensemble.DefaultMode),
			DefaultDepth: models.AnalysisDepth(a.Config.Ensemble.DefaultDepth),
			HistoryLimit: a.Config.Ensemble.HistoryLimit,
		},
		a.Logger,
	)

	a.Logger.Debug().
		Str("provider", a.Config.Models.Provider).
		Int("coordinator_model_limit", a.Config.Ensemble.CoordinatorModelLimit).
		Dur("agent_timeout", a.Config.Ensemble.AgentTimeoutDuration()).
		Msg("Ensemble services initialized")

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.EnsembleHandler = handlers.NewEnsembleHandler(a.EnsembleService, a.Logger)
	if a.Config.WebSocket.Enabled {
		a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	}
}

// Close closes all application resources
func (a *App) Close() error {
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
