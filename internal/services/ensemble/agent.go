package ensemble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/models"
)

// DecisionInput is everything a decision function may look at. Outputs holds only the
// successful model outputs; Assigned is the number of models the agent owns.
type DecisionInput struct {
	AgentID   string
	Role      models.Role
	Outputs   []models.ModelOutput
	Assigned  int
	Portfolio models.PortfolioSnapshot
	Market    models.MarketContext
}

// Verdict is the role-specific part of an AgentDecision
type Verdict struct {
	Decision       string
	Confidence     float64
	Reasoning      string
	SupportingData map[string]interface{}
}

// DecisionFunc is a deterministic scoring routine for one role
type DecisionFunc func(in DecisionInput) (Verdict, error)

// Registry maps roles to their decision functions. New roles are added by registering
// a function; roles without one fall back to the generic analysis.
type Registry struct {
	mu       sync.RWMutex
	funcs    map[models.Role]DecisionFunc
	fallback DecisionFunc
}

// NewRegistry creates an empty registry with the generic fallback
func NewRegistry() *Registry {
	return &Registry{
		funcs:    make(map[models.Role]DecisionFunc),
		fallback: decideGeneric,
	}
}

// NewDefaultRegistry creates a registry with the built-in role analyzers
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(models.RoleRiskManager, decideRisk)
	r.Register(models.RolePortfolioOptimizer, decidePortfolio)
	r.Register(models.RoleSentimentAnalyst, decideSentiment)
	r.Register(models.RoleTechnicalAnalyst, decideTechnical)
	r.Register(models.RoleVolatilityExpert, decideVolatility)
	r.Register(models.RoleCoordinator, decideCoordination)
	return r
}

// Register binds a decision function to a role, replacing any previous binding
func (r *Registry) Register(role models.Role, fn DecisionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[role] = fn
}

// Lookup returns the decision function for a role
func (r *Registry) Lookup(role models.Role) DecisionFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.funcs[role]; ok && fn != nil {
		return fn
	}
	return r.fallback
}

// DecisionAgent produces one AgentDecision per analysis cycle
type DecisionAgent interface {
	ID() string
	Role() models.Role
	Decide(ctx context.Context, portfolio models.PortfolioSnapshot, market models.MarketContext) models.AgentDecision
}

// Agent is bound to one role and the models it owns. It keeps no state between cycles.
type Agent struct {
	id       string
	role     models.Role
	modelIDs []string
	adapter  *Adapter
	decide   DecisionFunc
	logger   arbor.ILogger
}

// NewAgent creates an agent for one assignment
func NewAgent(assignment models.AgentAssignment, adapter *Adapter, decide DecisionFunc, logger arbor.ILogger) *Agent {
	return &Agent{
		id:       assignment.AgentID,
		role:     assignment.Role,
		modelIDs: append([]string(nil), assignment.ModelIDs...),
		adapter:  adapter,
		decide:   decide,
		logger:   logger,
	}
}

func (a *Agent) ID() string        { return a.id }
func (a *Agent) Role() models.Role { return a.role }

// Decide pulls every owned model output and applies the role's decision function.
// Any fault is converted into an ERROR decision with zero confidence.
func (a *Agent) Decide(ctx context.Context, portfolio models.PortfolioSnapshot, market models.MarketContext) (decision models.AgentDecision) {
	outputs := make([]models.ModelOutput, 0, len(a.modelIDs))

	defer func() {
		if r := recover(); r != nil {
			perr := common.NewPanicError(r)
			a.logger.Error().
				Str("agent_id", a.id).
				Str("role", string(a.role)).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", perr.Stack).
				Msg("Agent analysis panicked")
			decision = a.errorDecision(perr, outputs)
		}
	}()

	for _, modelID := range a.modelIDs {
		if err := ctx.Err(); err != nil {
			return a.errorDecision(fmt.Errorf("analysis cancelled: %w", err), outputs)
		}
		outputs = append(outputs, a.adapter.Fetch(ctx, modelID, buildModelInput(modelID, portfolio, market)))
	}

	successful := make([]models.ModelOutput, 0, len(outputs))
	var failed []string
	for _, out := range outputs {
		if out.Succeeded {
			successful = append(successful, out)
			continue
		}
		failed = append(failed, out.ModelID)
		a.logger.Debug().
			Str("agent_id", a.id).
			Str("model_id", out.ModelID).
			Str("error", out.Error).
			Msg("Model output excluded from scoring")
	}

	verdict, err := a.decide(DecisionInput{
		AgentID:   a.id,
		Role:      a.role,
		Outputs:   successful,
		Assigned:  len(a.modelIDs),
		Portfolio: portfolio,
		Market:    market,
	})
	if err != nil {
		return a.errorDecision(err, outputs)
	}
	if verdict.Decision == "" {
		return a.errorDecision(fmt.Errorf("decision function for %s returned an empty label", a.role), outputs)
	}

	supporting := verdict.SupportingData
	if supporting == nil {
		supporting = make(map[string]interface{})
	}
	supporting["models_assigned"] = len(a.modelIDs)
	supporting["models_succeeded"] = len(successful)
	if len(failed) > 0 {
		supporting["failed_models"] = failed
	}

	return models.AgentDecision{
		AgentID:         a.id,
		Role:            a.role,
		Decision:        verdict.Decision,
		Confidence:      round4(clamp01(verdict.Confidence)),
		Reasoning:       verdict.Reasoning,
		SupportingData:  supporting,
		Timestamp:       time.Now().UTC(),
		RawModelOutputs: outputs,
	}
}

func (a *Agent) errorDecision(err error, outputs []models.ModelOutput) models.AgentDecision {
	return models.AgentDecision{
		AgentID:         a.id,
		Role:            a.role,
		Decision:        models.DecisionError,
		Confidence:      0.0,
		Reasoning:       err.Error(),
		SupportingData:  map[string]interface{}{"models_assigned": len(a.modelIDs)},
		Timestamp:       time.Now().UTC(),
		RawModelOutputs: outputs,
	}
}

// buildModelInput creates a fresh input map per invocation so a predictor cannot
// mutate the shared cycle context
func buildModelInput(modelID string, portfolio models.PortfolioSnapshot, market models.MarketContext) map[string]interface{} {
	holdings := make([]map[string]interface{}, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		holdings = append(holdings, map[string]interface{}{
			"symbol": h.Symbol,
			"weight": h.Weight,
			"value":  h.Value,
			"sector": h.Sector,
		})
	}

	symbols := portfolio.Symbols()
	sort.Strings(symbols)

	indicators := make(map[string]interface{}, len(market.EconomicIndicators))
	for k, v := range market.EconomicIndicators {
		indicators[k] = v
	}

	return map[string]interface{}{
		"model_id": modelID,
		"portfolio": map[string]interface{}{
			"portfolio_id": portfolio.PortfolioID,
			"holdings":     holdings,
			"symbols":      symbols,
			"total_value":  portfolio.TotalValue,
			"cash":         portfolio.Cash,
		},
		"market": map[string]interface{}{
			"market_regime":       market.MarketRegime,
			"volatility_regime":   market.VolatilityRegime,
			"market_sentiment":    market.MarketSentiment,
			"economic_indicators": indicators,
		},
	}
}
