package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// EnsembleStorage implements the EnsembleStorage interface for Badger
type EnsembleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEnsembleStorage creates a new EnsembleStorage instance
func NewEnsembleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EnsembleStorage {
	return &EnsembleStorage{
		db:     db,
		logger: logger,
	}
}

// SaveEnsemble inserts or replaces an ensemble configuration
func (s *EnsembleStorage) SaveEnsemble(ctx context.Context, config *models.EnsembleConfiguration) error {
	if config == nil || config.EnsembleID == "" {
		return fmt.Errorf("ensemble id is required")
	}
	if err := s.db.Store().Upsert(config.EnsembleID, config); err != nil {
		return fmt.Errorf("failed to save ensemble: %w", err)
	}
	return nil
}

// GetEnsemble retrieves an ensemble configuration by id
func (s *EnsembleStorage) GetEnsemble(ctx context.Context, ensembleID string) (*models.EnsembleConfiguration, error) {
	var config models.EnsembleConfiguration
	err := s.db.Store().Get(ensembleID, &config)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ensemble: %w", err)
	}
	return &config, nil
}

// ListEnsembles returns every stored ensemble, newest first
func (s *EnsembleStorage) ListEnsembles(ctx context.Context) ([]*models.EnsembleConfiguration, error) {
	var configs []models.EnsembleConfiguration
	if err := s.db.Store().Find(&configs, nil); err != nil {
		return nil, fmt.Errorf("failed to list ensembles: %w", err)
	}

	sort.Slice(configs, func(i, j int) bool {
		if configs[i].CreatedAt.Equal(configs[j].CreatedAt) {
			return configs[i].EnsembleID < configs[j].EnsembleID
		}
		return configs[i].CreatedAt.After(configs[j].CreatedAt)
	})

	out := make([]*models.EnsembleConfiguration, 0, len(configs))
	for i := range configs {
		out = append(out, &configs[i])
	}
	return out, nil
}

// DeleteEnsemble removes an ensemble configuration
func (s *EnsembleStorage) DeleteEnsemble(ctx context.Context, ensembleID string) error {
	err := s.db.Store().Delete(ensembleID, &models.EnsembleConfiguration{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete ensemble: %w", err)
	}
	return nil
}
