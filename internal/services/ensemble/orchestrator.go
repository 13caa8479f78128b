package ensemble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

var (
	// ErrNoAgents is returned when an ensemble cannot be built from the supplied models
	ErrNoAgents = errors.New("no agents available")
	// ErrEnsembleNotReady is returned when analysis is requested on a missing or empty ensemble
	ErrEnsembleNotReady = errors.New("ensemble not ready")
)

// OrchestratorConfig holds the tunables of the orchestrator
type OrchestratorConfig struct {
	CoordinatorModelLimit int           // models handed to the coordinator, 0 disables the coordinator
	MaxConcurrency        int           // 0 runs one goroutine per agent
	AgentTimeout          time.Duration // per-agent deadline, 0 disables it
}

// AnalysisInput is the read-only context of one analysis cycle
type AnalysisInput struct {
	Portfolio       models.PortfolioSnapshot
	Depth           models.AnalysisDepth
	MarketOverrides *models.MarketContext
}

// agentFactory turns an assignment into a runnable agent
type agentFactory func(assignment models.AgentAssignment) DecisionAgent

// Orchestrator builds ensembles and drives their agents through analysis cycles.
// It holds no per-ensemble state; every call receives the configuration explicitly.
type Orchestrator struct {
	resolver *RoleResolver
	registry *Registry
	adapter  *Adapter
	market   interfaces.MarketContextProvider
	config   OrchestratorConfig
	logger   arbor.ILogger
	newAgent agentFactory
}

// NewOrchestrator creates an orchestrator. market may be nil, in which case
// analysis runs against an empty market context.
func NewOrchestrator(resolver *RoleResolver, registry *Registry, adapter *Adapter, market interfaces.MarketContextProvider, config OrchestratorConfig, logger arbor.ILogger) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		registry: registry,
		adapter:  adapter,
		market:   market,
		config:   config,
		logger:   logger,
	}
	o.newAgent = func(assignment models.AgentAssignment) DecisionAgent {
		return NewAgent(assignment, o.adapter, o.registry.Lookup(assignment.Role), o.logger)
	}
	return o
}

// Build partitions the models across role agents and adds a coordinator holding the
// first CoordinatorModelLimit models. An empty model list yields ErrNoAgents.
func (o *Orchestrator) Build(modelIDs []string, mode models.CollaborationMode) (*models.EnsembleConfiguration, error) {
	if mode == "" {
		mode = models.ModeParallel
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown collaboration mode: %s", mode)
	}

	assignments := o.resolver.Assign(modelIDs)
	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: no model ids supplied", ErrNoAgents)
	}

	ensembleID := common.NewEnsembleID()
	config := &models.EnsembleConfiguration{
		EnsembleID: ensembleID,
		Agents:     make(map[string]models.AgentAssignment),
		Mode:       mode,
		CreatedAt:  time.Now().UTC(),
	}

	for _, role := range models.AllRoles() {
		ids, ok := assignments[role]
		if !ok || len(ids) == 0 || role == models.RoleCoordinator {
			continue
		}
		agentID := common.NewAgentID(string(role), ensembleID)
		config.Agents[agentID] = models.AgentAssignment{AgentID: agentID, Role: role, ModelIDs: ids}
		config.ModelIDs = append(config.ModelIDs, ids...)
	}

	if o.config.CoordinatorModelLimit > 0 {
		contextModels := firstUnique(modelIDs, o.config.CoordinatorModelLimit)
		agentID := common.NewAgentID(string(models.RoleCoordinator), ensembleID)
		config.Agents[agentID] = models.AgentAssignment{AgentID: agentID, Role: models.RoleCoordinator, ModelIDs: contextModels}
	}

	roles := make([]string, 0, len(config.Agents))
	for _, r := range config.Roles() {
		roles = append(roles, string(r))
	}
	o.logger.Info().
		Str("ensemble_id", ensembleID).
		Int("agents", len(config.Agents)).
		Int("models", len(config.ModelIDs)).
		Strs("roles", roles).
		Str("mode", string(mode)).
		Msg("Ensemble built")

	return config, nil
}

// Analyze runs every agent of the ensemble once and synthesizes the results.
// A failing agent is logged and left out; only a missing or empty ensemble or a
// cancelled context fails the call.
func (o *Orchestrator) Analyze(ctx context.Context, config *models.EnsembleConfiguration, input AnalysisInput) (*models.EnsembleResult, error) {
	if !config.IsReady() {
		return nil, ErrEnsembleNotReady
	}

	depth := input.Depth
	if depth == "" {
		depth = models.DepthStandard
	}

	started := time.Now()
	logger := o.logger.WithCorrelationId(config.EnsembleID)

	market := o.resolveMarket(ctx, logger).Merge(input.MarketOverrides)
	portfolio := input.Portfolio.Clone()

	agents := make([]DecisionAgent, 0, len(config.Agents))
	for _, agentID := range config.AgentIDs() {
		assignment := config.Agents[agentID]
		if assignment.Role == models.RoleCoordinator && depth == models.DepthQuick {
			continue
		}
		agents = append(agents, o.newAgent(assignment))
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrEnsembleNotReady, ErrNoAgents)
	}

	logger.Info().
		Int("agents", len(agents)).
		Str("mode", string(config.Mode)).
		Str("depth", string(depth)).
		Msg("Analysis started")

	var decisions []models.AgentDecision
	var err error
	if config.Mode == models.ModeSequential {
		decisions, err = o.runSequential(ctx, agents, portfolio, market, logger)
	} else {
		decisions, err = o.runParallel(ctx, agents, portfolio, market, logger)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Analysis abandoned")
		return nil, err
	}

	sort.Slice(decisions, func(i, j int) bool { return decisions[i].AgentID < decisions[j].AgentID })

	if depth == models.DepthComprehensive {
		for i := range decisions {
			decisions[i].SupportingData["market_context"] = market.Clone()
		}
	}

	opinions := Opinions(decisions)
	insights := Synthesize(opinions)
	score := Score(opinions)
	recommendations := Rank(insights)

	failed := len(agents) - len(decisions)
	for _, d := range decisions {
		if d.IsError() {
			failed++
		}
	}
	dominant, _ := DominantDecision(opinions)
	highSeverity := 0
	for _, insight := range insights {
		if insight.Severity == models.SeverityHigh {
			highSeverity++
		}
	}

	duration := time.Since(started)
	result := &models.EnsembleResult{
		ResultID:        common.NewResultID(),
		EnsembleID:      config.EnsembleID,
		AgentDecisions:  decisions,
		Insights:        insights,
		Recommendations: recommendations,
		ConfidenceScore: score.EnsembleConfidence,
		Consensus:       score,
		Summary: models.ResultSummary{
			TotalAgents:        len(agents),
			SuccessfulAgents:   len(agents) - failed,
			FailedAgents:       failed,
			ConsensusLevel:     score.ConsensusLevel,
			EnsembleConfidence: score.EnsembleConfidence,
			InsightCount:       len(insights),
			HighSeverityCount:  highSeverity,
			DominantDecision:   dominant,
			LowAgreement:       config.Mode == models.ModeConsensus && score.ConsensusLevel < 0.5,
			DurationMs:         duration.Milliseconds(),
			Mode:               config.Mode,
			Depth:              depth,
		},
		CreatedAt: time.Now().UTC(),
	}

	logger.Info().
		Int("decisions", len(decisions)).
		Int("failed", failed).
		Int("insights", len(insights)).
		Float64("consensus", score.ConsensusLevel).
		Float64("confidence", score.EnsembleConfidence).
		Dur("duration", duration).
		Msg("Analysis completed")

	return result, nil
}

// Opinions filters out decisions that carry no view: coordinator summaries and errors
func Opinions(decisions []models.AgentDecision) []models.AgentDecision {
	out := make([]models.AgentDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.Role == models.RoleCoordinator || d.IsError() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (o *Orchestrator) resolveMarket(ctx context.Context, logger arbor.ILogger) models.MarketContext {
	if o.market == nil {
		return models.MarketContext{}
	}
	snapshot, err := o.market.Snapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Market context unavailable, continuing with an empty snapshot")
		return models.MarketContext{}
	}
	return snapshot
}

// runParallel dispatches one goroutine per agent and joins on all of them. Siblings
// are never cancelled by a failing agent; a cancelled ctx abandons the join.
func (o *Orchestrator) runParallel(ctx context.Context, agents []DecisionAgent, portfolio models.PortfolioSnapshot, market models.MarketContext, logger arbor.ILogger) ([]models.AgentDecision, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		decisions = make([]models.AgentDecision, 0, len(agents))
	)

	var slots chan struct{}
	if o.config.MaxConcurrency > 0 {
		slots = make(chan struct{}, o.config.MaxConcurrency)
	}

	for _, agent := range agents {
		wg.Add(1)
		go func(agent DecisionAgent) {
			defer wg.Done()

			if slots != nil {
				select {
				case slots <- struct{}{}:
					defer func() { <-slots }()
				case <-ctx.Done():
					return
				}
			}

			decision, ok := o.runAgent(ctx, agent, portfolio, market, logger)
			if !ok {
				return
			}
			mu.Lock()
			decisions = append(decisions, decision)
			mu.Unlock()
		}(agent)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("analysis cancelled: %w", ctx.Err())
	}

	return decisions, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, agents []DecisionAgent, portfolio models.PortfolioSnapshot, market models.MarketContext, logger arbor.ILogger) ([]models.AgentDecision, error) {
	decisions := make([]models.AgentDecision, 0, len(agents))
	for _, agent := range agents {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis cancelled: %w", err)
		}
		if decision, ok := o.runAgent(ctx, agent, portfolio, market, logger); ok {
			decisions = append(decisions, decision)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}
	return decisions, nil
}

// runAgent is the gather boundary: a panic escaping the agent is logged and the
// agent is left out of the cycle. Each agent gets its own copy of the cycle context.
func (o *Orchestrator) runAgent(ctx context.Context, agent DecisionAgent, portfolio models.PortfolioSnapshot, market models.MarketContext, logger arbor.ILogger) (decision models.AgentDecision, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			perr := common.NewPanicError(r)
			logger.Error().
				Str("agent_id", agent.ID()).
				Str("role", string(agent.Role())).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", perr.Stack).
				Msg("Agent failed, excluding it from this cycle")
			decision, ok = models.AgentDecision{}, false
		}
	}()

	agentCtx := ctx
	if o.config.AgentTimeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, o.config.AgentTimeout)
		defer cancel()
	}

	decision = agent.Decide(agentCtx, portfolio.Clone(), market.Clone())

	if decision.Role != agent.Role() || decision.AgentID != agent.ID() {
		logger.Error().
			Str("agent_id", agent.ID()).
			Str("decision_agent_id", decision.AgentID).
			Str("role", string(agent.Role())).
			Str("decision_role", string(decision.Role)).
			Msg("Agent returned a decision for a different identity, excluding it from this cycle")
		return models.AgentDecision{}, false
	}
	if strings.TrimSpace(decision.Decision) == "" {
		decision.Decision = models.DecisionError
		decision.Confidence = 0
	}
	decision.Confidence = clamp01(decision.Confidence)
	if decision.SupportingData == nil {
		decision.SupportingData = make(map[string]interface{})
	}

	if decision.IsError() {
		logger.Warn().
			Str("agent_id", agent.ID()).
			Str("role", string(agent.Role())).
			Str("reason", decision.Reasoning).
			Msg("Agent reported an error decision")
	}

	return decision, true
}

func firstUnique(ids []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
