package interfaces

import (
	"context"

	"github.com/ternarybob/advisor/internal/models"
)

// EnsembleService is the caller-facing surface used by the HTTP and MCP transports
type EnsembleService interface {
	CreateEnsemble(ctx context.Context, req *models.CreateEnsembleRequest) (*models.CreateEnsembleResponse, error)
	GetEnsemble(ctx context.Context, ensembleID string) (*models.EnsembleConfiguration, error)
	ListEnsembles(ctx context.Context) ([]*models.EnsembleConfiguration, error)
	DeleteEnsemble(ctx context.Context, ensembleID string) error

	// AnalyzePortfolio runs one analysis cycle of a stored ensemble
	AnalyzePortfolio(ctx context.Context, ensembleID string, req *models.AnalyzeRequest) (*models.EnsembleResult, error)

	ListResults(ctx context.Context, ensembleID string, limit int) ([]*models.EnsembleResult, error)
	GetResult(ctx context.Context, resultID string) (*models.EnsembleResult, error)
}
