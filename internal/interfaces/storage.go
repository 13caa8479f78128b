// -----------------------------------------------------------------------
// Last Modified: Tuesday, 6th October 2026 9:20:47 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/advisor/internal/models"
)

// ErrNotFound is returned when a record is not found in storage
var ErrNotFound = errors.New("record not found")

// EnsembleStorage persists ensemble configurations on behalf of callers
type EnsembleStorage interface {
	SaveEnsemble(ctx context.Context, config *models.EnsembleConfiguration) error
	GetEnsemble(ctx context.Context, ensembleID string) (*models.EnsembleConfiguration, error)
	ListEnsembles(ctx context.Context) ([]*models.EnsembleConfiguration, error)
	DeleteEnsemble(ctx context.Context, ensembleID string) error
}

// ResultStorage keeps the history of analysis results
type ResultStorage interface {
	SaveResult(ctx context.Context, result *models.EnsembleResult) error
	GetResult(ctx context.Context, resultID string) (*models.EnsembleResult, error)
	// ListResults returns results of one ensemble, newest first. limit <= 0 returns all.
	ListResults(ctx context.Context, ensembleID string, limit int) ([]*models.EnsembleResult, error)
	DeleteResult(ctx context.Context, resultID string) error
	DeleteResultsByEnsemble(ctx context.Context, ensembleID string) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	EnsembleStorage() EnsembleStorage
	ResultStorage() ResultStorage
	Close() error
}
