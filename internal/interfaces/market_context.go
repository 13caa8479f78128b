package interfaces

import (
	"context"

	"github.com/ternarybob/advisor/internal/models"
)

// MarketContextProvider supplies the market snapshot for one analysis cycle
type MarketContextProvider interface {
	Snapshot(ctx context.Context) (models.MarketContext, error)
}
