package ensemble

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

var (
	// ErrEnsembleNotFound is returned when an ensemble id is unknown
	ErrEnsembleNotFound = errors.New("ensemble not found")
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

// ServiceConfig holds caller-facing defaults
type ServiceConfig struct {
	DefaultMode  models.CollaborationMode
	DefaultDepth models.AnalysisDepth
	HistoryLimit int // results kept per ensemble, 0 keeps everything
}

var _ interfaces.EnsembleService = (*Service)(nil)

// Service is the caller-facing surface: it builds ensembles, keeps their configuration
// and analysis history in storage, and publishes lifecycle events.
type Service struct {
	orchestrator *Orchestrator
	ensembles    interfaces.EnsembleStorage
	results      interfaces.ResultStorage
	events       interfaces.EventService
	config       ServiceConfig
	logger       arbor.ILogger
}

// NewService creates the ensemble service. events may be nil.
func NewService(orchestrator *Orchestrator, storage interfaces.StorageManager, events interfaces.EventService, config ServiceConfig, logger arbor.ILogger) *Service {
	if config.DefaultMode == "" {
		config.DefaultMode = models.ModeParallel
	}
	if config.DefaultDepth == "" {
		config.DefaultDepth = models.DepthStandard
	}
	return &Service{
		orchestrator: orchestrator,
		ensembles:    storage.EnsembleStorage(),
		results:      storage.ResultStorage(),
		events:       events,
		config:       config,
		logger:       logger,
	}
}

// CreateEnsemble builds and stores a new ensemble. Failures are reported both in the
// response (success=false) and as an error; no partial ensemble is stored.
func (s *Service) CreateEnsemble(ctx context.Context, in *models.CreateEnsembleRequest) (*models.CreateEnsembleResponse, error) {
	// Defaults are resolved on a copy; the caller's request is left untouched
	var req models.CreateEnsembleRequest
	if in != nil {
		req = *in
	}
	if req.Mode == "" {
		req.Mode = s.config.DefaultMode
	}
	if err := req.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		return failedCreate(err), err
	}

	config, err := s.orchestrator.Build(req.ModelIDs, req.Mode)
	if err != nil {
		s.logger.Warn().Err(err).Int("models", len(req.ModelIDs)).Msg("Ensemble creation failed")
		return failedCreate(err), err
	}

	if err := s.ensembles.SaveEnsemble(ctx, config); err != nil {
		err = fmt.Errorf("failed to save ensemble: %w", err)
		return failedCreate(err), err
	}

	s.publish(ctx, interfaces.EventEnsembleCreated, map[string]interface{}{
		"ensemble_id": config.EnsembleID,
		"agents":      len(config.Agents),
		"mode":        string(config.Mode),
	})

	return &models.CreateEnsembleResponse{
		Success:          true,
		EnsembleID:       config.EnsembleID,
		AgentsCreated:    len(config.Agents),
		AgentRoles:       config.Roles(),
		ModelAssignments: config.ModelAssignments(),
	}, nil
}

func failedCreate(err error) *models.CreateEnsembleResponse {
	return &models.CreateEnsembleResponse{
		Success:          false,
		AgentRoles:       []models.Role{},
		ModelAssignments: map[string][]string{},
		Error:            err.Error(),
	}
}

// GetEnsemble returns a stored ensemble configuration
func (s *Service) GetEnsemble(ctx context.Context, ensembleID string) (*models.EnsembleConfiguration, error) {
	config, err := s.ensembles.GetEnsemble(ctx, ensembleID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEnsembleNotFound, ensembleID)
		}
		return nil, err
	}
	return config, nil
}

// ListEnsembles returns every stored ensemble configuration
func (s *Service) ListEnsembles(ctx context.Context) ([]*models.EnsembleConfiguration, error) {
	return s.ensembles.ListEnsembles(ctx)
}

// DeleteEnsemble removes an ensemble and its analysis history
func (s *Service) DeleteEnsemble(ctx context.Context, ensembleID string) error {
	if _, err := s.GetEnsemble(ctx, ensembleID); err != nil {
		return err
	}
	removed, err := s.results.DeleteResultsByEnsemble(ctx, ensembleID)
	if err != nil {
		return fmt.Errorf("failed to delete ensemble results: %w", err)
	}
	if err := s.ensembles.DeleteEnsemble(ctx, ensembleID); err != nil {
		return fmt.Errorf("failed to delete ensemble: %w", err)
	}

	s.logger.Info().Str("ensemble_id", ensembleID).Int("results_removed", removed).Msg("Ensemble deleted")
	s.publish(ctx, interfaces.EventEnsembleDeleted, map[string]interface{}{"ensemble_id": ensembleID})
	return nil
}

// AnalyzePortfolio runs one analysis cycle of a stored ensemble and records the result
func (s *Service) AnalyzePortfolio(ctx context.Context, ensembleID string, req *models.AnalyzeRequest) (*models.EnsembleResult, error) {
	if ensembleID == "" {
		return nil, ErrEnsembleNotReady
	}
	config, err := s.GetEnsemble(ctx, ensembleID)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, config, req)
}

// Analyze runs one analysis cycle against an explicit configuration. A nil or empty
// configuration yields ErrEnsembleNotReady.
func (s *Service) Analyze(ctx context.Context, config *models.EnsembleConfiguration, in *models.AnalyzeRequest) (*models.EnsembleResult, error) {
	if !config.IsReady() {
		return nil, ErrEnsembleNotReady
	}
	var req models.AnalyzeRequest
	if in != nil {
		req = *in
	}
	if req.Depth == "" {
		req.Depth = s.config.DefaultDepth
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.publish(ctx, interfaces.EventAnalysisStarted, map[string]interface{}{
		"ensemble_id": config.EnsembleID,
		"depth":       string(req.Depth),
	})

	result, err := s.orchestrator.Analyze(ctx, config, AnalysisInput{
		Portfolio:       req.Portfolio,
		Depth:           req.Depth,
		MarketOverrides: req.MarketOverrides,
	})
	if err != nil {
		return nil, err
	}

	for _, d := range result.AgentDecisions {
		if d.IsError() {
			s.publish(ctx, interfaces.EventAgentFailed, map[string]interface{}{
				"ensemble_id": config.EnsembleID,
				"agent_id":    d.AgentID,
				"role":        string(d.Role),
				"reason":      d.Reasoning,
			})
		}
	}

	// History is best effort: a storage failure must not hide a completed analysis
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("result_id", result.ResultID).Msg("Failed to store analysis result")
	} else {
		s.trimHistory(ctx, config.EnsembleID)
	}

	s.publish(ctx, interfaces.EventAnalysisCompleted, map[string]interface{}{
		"ensemble_id":      config.EnsembleID,
		"result_id":        result.ResultID,
		"decisions":        len(result.AgentDecisions),
		"insights":         len(result.Insights),
		"consensus_level":  result.Consensus.ConsensusLevel,
		"confidence_score": result.ConfidenceScore,
	})

	return result, nil
}

// ListResults returns the stored analysis history of an ensemble, newest first
func (s *Service) ListResults(ctx context.Context, ensembleID string, limit int) ([]*models.EnsembleResult, error) {
	return s.results.ListResults(ctx, ensembleID, limit)
}

// GetResult returns one stored analysis result
func (s *Service) GetResult(ctx context.Context, resultID string) (*models.EnsembleResult, error) {
	return s.results.GetResult(ctx, resultID)
}

func (s *Service) trimHistory(ctx context.Context, ensembleID string) {
	if s.config.HistoryLimit <= 0 {
		return
	}
	results, err := s.results.ListResults(ctx, ensembleID, 0)
	if err != nil {
		s.logger.Warn().Err(err).Str("ensemble_id", ensembleID).Msg("Failed to list results for trimming")
		return
	}
	for _, old := range results[min(len(results), s.config.HistoryLimit):] {
		if err := s.results.DeleteResult(ctx, old.ResultID); err != nil {
			s.logger.Warn().Err(err).Str("result_id", old.ResultID).Msg("Failed to trim analysis result")
		}
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
