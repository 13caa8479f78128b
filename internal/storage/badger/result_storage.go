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

// ResultStorage implements the ResultStorage interface for Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// SaveResult inserts or replaces an analysis result
func (s *ResultStorage) SaveResult(ctx context.Context, result *models.EnsembleResult) error {
	if result == nil || result.ResultID == "" {
		return fmt.Errorf("result id is required")
	}
	if err := s.db.Store().Upsert(result.ResultID, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult retrieves an analysis result by id
func (s *ResultStorage) GetResult(ctx context.Context, resultID string) (*models.EnsembleResult, error) {
	var result models.EnsembleResult
	err := s.db.Store().Get(resultID, &result)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

// ListResults returns the results of one ensemble, newest first. limit <= 0 returns all.
func (s *ResultStorage) ListResults(ctx context.Context, ensembleID string, limit int) ([]*models.EnsembleResult, error) {
	var results []models.EnsembleResult
	query := badgerhold.Where("EnsembleID").Eq(ensembleID).Index("EnsembleID")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ResultID > results[j].ResultID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]*models.EnsembleResult, 0, len(results))
	for i := range results {
		out = append(out, &results[i])
	}
	return out, nil
}

// DeleteResult removes one analysis result
func (s *ResultStorage) DeleteResult(ctx context.Context, resultID string) error {
	err := s.db.Store().Delete(resultID, &models.EnsembleResult{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// DeleteResultsByEnsemble removes every result of an ensemble and returns how many were removed
func (s *ResultStorage) DeleteResultsByEnsemble(ctx context.Context, ensembleID string) (int, error) {
	count, err := s.db.Store().Count(&models.EnsembleResult{}, badgerhold.Where("EnsembleID").Eq(ensembleID).Index("EnsembleID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.EnsembleResult{}, badgerhold.Where("EnsembleID").Eq(ensembleID).Index("EnsembleID")); err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}

	s.logger.Debug().Str("ensemble_id", ensembleID).Int("count", int(count)).Msg("Ensemble results deleted")
	return int(count), nil
}
