package ensemble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// stubPredictor returns canned predictions keyed by model id
type stubPredictor struct {
	mu        sync.Mutex
	responses map[string]*interfaces.Prediction
	errs      map[string]error
	panics    map[string]bool
	delays    map[string]time.Duration
	calls     map[string]int
}

func newStubPredictor() *stubPredictor {
	return &stubPredictor{
		responses: make(map[string]*interfaces.Prediction),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
		delays:    make(map[string]time.Duration),
		calls:     make(map[string]int),
	}
}

func (p *stubPredictor) succeed(modelID string, payload map[string]interface{}) *stubPredictor {
	p.responses[modelID] = &interfaces.Prediction{Success: true, Prediction: payload}
	return p
}

func (p *stubPredictor) fail(modelID string, err error) *stubPredictor {
	p.errs[modelID] = err
	return p
}

func (p *stubPredictor) Predict(ctx context.Context, modelID string, input map[string]interface{}) (*interfaces.Prediction, error) {
	p.mu.Lock()
	p.calls[modelID]++
	delay := p.delays[modelID]
	shouldPanic := p.panics[modelID]
	resp, err := p.responses[modelID], p.errs[modelID]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if shouldPanic {
		panic("predictor exploded")
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &interfaces.Prediction{Success: false, Error: "model not found"}, nil
	}
	return resp, nil
}

func (p *stubPredictor) ListModels(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.responses))
	for id := range p.responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *stubPredictor) callCount(modelID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[modelID]
}

type staticMarket struct {
	snapshot models.MarketContext
	err      error
	calls    int
	mu       sync.Mutex
}

func (m *staticMarket) Snapshot(ctx context.Context) (models.MarketContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.snapshot, m.err
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func newTestOrchestrator(predictor interfaces.ModelPredictor, market interfaces.MarketContextProvider, config OrchestratorConfig) *Orchestrator {
	logger := testLogger()
	adapter := NewAdapter(predictor, AdapterOptions{Timeout: time.Second}, logger)
	return NewOrchestrator(NewRoleResolver(), NewDefaultRegistry(), adapter, market, config, logger)
}

// scenarioPredictor serves the three-model example portfolio
func scenarioPredictor() *stubPredictor {
	return newStubPredictor().
		succeed("risk_var_95", map[string]interface{}{"var_95": -0.04}).
		succeed("tech_momentum_1", map[string]interface{}{"signal": 0.85}).
		succeed("vol_garch_1", map[string]interface{}{"volatility_forecast": 0.22})
}

func samplePortfolio() models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		PortfolioID: "pf-1",
		Holdings: []models.Holding{
			{Symbol: "BHP", Weight: 0.35, Sector: "Materials"},
			{Symbol: "CBA", Weight: 0.25, Sector: "Financials"},
			{Symbol: "CSL", Weight: 0.40, Sector: "Health Care"},
		},
		TotalValue: 100000,
	}
}

func decision(agentID string, role models.Role, label string, confidence float64) models.AgentDecision {
	return models.AgentDecision{
		AgentID:        agentID,
		Role:           role,
		Decision:       label,
		Confidence:     confidence,
		SupportingData: map[string]interface{}{},
		Timestamp:      time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

// panickingAgent simulates a fault that escapes the agent's own recovery
type panickingAgent struct {
	id   string
	role models.Role
}

func (a *panickingAgent) ID() string        { return a.id }
func (a *panickingAgent) Role() models.Role { return a.role }
func (a *panickingAgent) Decide(ctx context.Context, portfolio models.PortfolioSnapshot, market models.MarketContext) models.AgentDecision {
	panic(errors.New("agent crashed"))
}

// blockingAgent waits until its context is cancelled
type blockingAgent struct {
	id      string
	role    models.Role
	started chan struct{}
}

func (a *blockingAgent) ID() string        { return a.id }
func (a *blockingAgent) Role() models.Role { return a.role }
func (a *blockingAgent) Decide(ctx context.Context, portfolio models.PortfolioSnapshot, market models.MarketContext) models.AgentDecision {
	close(a.started)
	<-ctx.Done()
	return models.AgentDecision{AgentID: a.id, Role: a.role, Decision: models.DecisionError}
}
