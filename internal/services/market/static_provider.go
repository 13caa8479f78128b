package market

import (
	"context"
	"sync"

	"github.com/ternarybob/advisor/internal/models"
)

// StaticProvider serves a configured market snapshot. Update swaps the snapshot for
// subsequent analysis cycles; cycles already running keep the copy they pulled.
type StaticProvider struct {
	mu       sync.RWMutex
	snapshot models.MarketContext
}

// NewStaticProvider creates a provider serving snapshot
func NewStaticProvider(snapshot models.MarketContext) *StaticProvider {
	return &StaticProvider{snapshot: snapshot.Clone()}
}

// Snapshot returns a copy of the current market context
func (p *StaticProvider) Snapshot(ctx context.Context) (models.MarketContext, error) {
	if err := ctx.Err(); err != nil {
		return models.MarketContext{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot.Clone(), nil
}

// Update overlays the non-empty fields of overrides onto the current snapshot
func (p *StaticProvider) Update(overrides models.MarketContext) models.MarketContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = p.snapshot.Merge(&overrides)
	return p.snapshot.Clone()
}
