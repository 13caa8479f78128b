package ensemble

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/models"
)

func outputs(payloads map[string]map[string]interface{}) []models.ModelOutput {
	out := make([]models.ModelOutput, 0, len(payloads))
	for id, payload := range payloads {
		out = append(out, models.ModelOutput{ModelID: id, Payload: payload, Succeeded: true})
	}
	return out
}

func TestDecideRisk(t *testing.T) {
	tests := []struct {
		name           string
		payloads       map[string]map[string]interface{}
		assigned       int
		wantDecision   string
		wantConfidence float64
	}{
		{
			name:           "single tail below -3% is a high risk alert",
			payloads:       map[string]map[string]interface{}{"risk_var_95": {"var_95": -0.04}},
			assigned:       1,
			wantDecision:   LabelHighRiskAlert,
			wantConfidence: 0.85,
		},
		{
			name:           "tail between -3% and -2% is moderate",
			payloads:       map[string]map[string]interface{}{"risk_var_95": {"var": -0.025}},
			assigned:       1,
			wantDecision:   LabelModerateRisk,
			wantConfidence: 0.85,
		},
		{
			name:           "shallow tail is low risk",
			payloads:       map[string]map[string]interface{}{"risk_var_95": {"value_at_risk": -0.01}},
			assigned:       1,
			wantDecision:   LabelLowRisk,
			wantConfidence: 0.85,
		},
		{
			name:           "percent strings and percent keys are tolerated",
			payloads:       map[string]map[string]interface{}{"a": {"var_95": "-4.5%"}, "b": {"tail_risk_pct": -5.0}},
			assigned:       2,
			wantDecision:   LabelHighRiskAlert,
			wantConfidence: 0.85,
		},
		{
			name:           "mixed readings average to moderate",
			payloads:       map[string]map[string]interface{}{"a": {"var_95": -0.04}, "b": {"var_95": -0.01}},
			assigned:       2,
			wantDecision:   LabelModerateRisk, // (0.8 + 0.3) / 2 = 0.55
			wantConfidence: 0.5,
		},
		{
			name:           "nested path is read",
			payloads:       map[string]map[string]interface{}{"a": {"risk": map[string]interface{}{"var_95": -0.035}}},
			assigned:       2,
			wantDecision:   LabelHighRiskAlert,
			wantConfidence: 0.675,
		},
		{
			name:           "missing keys default to low risk",
			payloads:       map[string]map[string]interface{}{"a": {"unrelated": 1}},
			assigned:       1,
			wantDecision:   LabelLowRisk,
			wantConfidence: defaultedConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := decideRisk(DecisionInput{Role: models.RoleRiskManager, Outputs: outputs(tt.payloads), Assigned: tt.assigned})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
			assert.InDelta(t, tt.wantConfidence, verdict.Confidence, 1e-9)
			assert.NotEmpty(t, verdict.Reasoning)
		})
	}
}

func TestDecideRisk_TailScaleIsMonotonic(t *testing.T) {
	tests := []struct {
		key          string
		tail         interface{}
		wantDecision string
	}{
		{"var_95", -4.0, LabelHighRiskAlert},
		{"var_95", -1.5, LabelHighRiskAlert},
		{"var_95", -1.0, LabelHighRiskAlert},
		{"var_95", -0.9, LabelHighRiskAlert},
		{"var_95", -0.04, LabelHighRiskAlert},
		{"var_95", -0.025, LabelModerateRisk},
		{"var_95", -0.01, LabelLowRisk},
		{"var_95", 0.0, LabelLowRisk},
		{"var_95", "-2.5%", LabelModerateRisk},
		{"var_95_pct", -4.0, LabelHighRiskAlert},
		{"var_95_pct", -1.5, LabelLowRisk},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.key, tt.tail), func(t *testing.T) {
			verdict, err := decideRisk(DecisionInput{
				Outputs:  []models.ModelOutput{{ModelID: "risk_var_95", Payload: map[string]interface{}{tt.key: tt.tail}, Succeeded: true}},
				Assigned: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
		})
	}
}

func TestDecidePortfolio(t *testing.T) {
	tests := []struct {
		name         string
		payloads     map[string]map[string]interface{}
		portfolio    models.PortfolioSnapshot
		wantDecision string
		wantIssue    bool
	}{
		{
			name:         "low sharpe requires rebalance",
			payloads:     map[string]map[string]interface{}{"portfolio_mvo": {"sharpe_ratio": 0.6}},
			wantDecision: LabelRebalanceRequired,
			wantIssue:    true,
		},
		{
			name: "concentrated allocation requires rebalance",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {
				"sharpe_ratio": 1.2,
				"allocation":   map[string]interface{}{"BHP": 0.45, "CBA": 0.55},
			}},
			wantDecision: LabelRebalanceRequired,
			wantIssue:    true,
		},
		{
			name: "typed weight maps are read",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {
				"weights": map[string]float64{"BHP": 0.3, "CBA": 0.3, "CSL": 0.4},
			}},
			wantDecision: LabelPortfolioOptimal,
		},
		{
			name: "good sharpe and spread weights are optimal",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {
				"sharpe": 1.1,
				"allocation": map[string]interface{}{
					"BHP": 0.3, "CBA": 0.3, "CSL": 0.4,
				},
			}},
			wantDecision: LabelPortfolioOptimal,
		},
		{
			name:     "falls back to current holdings for concentration",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {"sharpe": 1.5}},
			portfolio: models.PortfolioSnapshot{Holdings: []models.Holding{
				{Symbol: "BHP", Weight: 0.7}, {Symbol: "CBA", Weight: 0.3},
			}},
			wantDecision: LabelRebalanceRequired,
			wantIssue:    true,
		},
		{
			name: "leveraged weight above one requires rebalance",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {
				"sharpe_ratio": 1.2,
				"allocation":   map[string]interface{}{"BHP": 1.2, "CBA": -0.2},
			}},
			wantDecision: LabelRebalanceRequired,
			wantIssue:    true,
		},
		{
			name: "percent weight strings are read as fractions",
			payloads: map[string]map[string]interface{}{"portfolio_mvo": {
				"allocation": map[string]interface{}{"BHP": "45%", "CBA": "55%"},
			}},
			wantDecision: LabelRebalanceRequired,
			wantIssue:    true,
		},
		{
			name:         "no data at all defaults to optimal",
			payloads:     map[string]map[string]interface{}{"portfolio_mvo": {}},
			wantDecision: LabelPortfolioOptimal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := decidePortfolio(DecisionInput{
				Role:      models.RolePortfolioOptimizer,
				Outputs:   outputs(tt.payloads),
				Assigned:  1,
				Portfolio: tt.portfolio,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
			if tt.wantIssue {
				assert.NotEmpty(t, verdict.SupportingData["issues"])
			}
		})
	}
}

func TestDecideDirectional(t *testing.T) {
	tests := []struct {
		name         string
		decide       DecisionFunc
		payloads     map[string]map[string]interface{}
		wantDecision string
	}{
		{"strong technical signal is bullish", decideTechnical, map[string]map[string]interface{}{"tech_momentum_1": {"signal": 0.85}}, LabelBullishTechnical},
		{"weak technical signal is bearish", decideTechnical, map[string]map[string]interface{}{"trend_1": {"momentum_score": 0.1}}, LabelBearishTechnical},
		{"middling technical signal is neutral", decideTechnical, map[string]map[string]interface{}{"trend_1": {"signal": 0.5}}, LabelNeutralTechnical},
		{"direction strings are understood", decideTechnical, map[string]map[string]interface{}{"trend_1": {"direction": "Bearish"}}, LabelBearishTechnical},
		{"percent signal strings are scaled", decideTechnical, map[string]map[string]interface{}{"trend_1": {"signal": "80%"}}, LabelBullishTechnical},
		{"negative sentiment on a -1..1 scale", decideSentiment, map[string]map[string]interface{}{"news_nlp": {"sentiment_score": -0.8}}, LabelBearishSentiment},
		{"sentiment label strings", decideSentiment, map[string]map[string]interface{}{"news_nlp": {"sentiment": "positive"}}, LabelBullishSentiment},
		{"averaged sentiment", decideSentiment, map[string]map[string]interface{}{"a": {"score": 0.9}, "b": {"score": 0.6}}, LabelBullishSentiment},
		{"no signal defaults to neutral", decideSentiment, map[string]map[string]interface{}{"a": {"headline_count": "many"}}, LabelNeutralSentiment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := tt.decide(DecisionInput{Outputs: outputs(tt.payloads), Assigned: len(tt.payloads)})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
		})
	}
}

func TestNormalizeSignal(t *testing.T) {
	tests := []struct {
		key  string
		in   float64
		want float64
	}{
		{"signal", -1, 0},
		{"signal", -0.05, 0},
		{"signal", 0, 0},
		{"signal", 0.05, 0.05},
		{"signal", 1, 1},
		{"signal", 80, 1},
		{"sentiment_score", -1, 0},
		{"sentiment_score", -0.05, 0.475},
		{"sentiment_score", 0, 0.5},
		{"sentiment_score", 0.05, 0.525},
		{"sentiment_score", 1, 1},
		{"news_sentiment", 0.42, 0.71},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.key, tt.in), func(t *testing.T) {
			assert.InDelta(t, tt.want, normalizeSignal(tt.key, tt.in), 1e-9)
		})
	}
}

func TestDecideDirectional_LabelsAroundZero(t *testing.T) {
	tests := []struct {
		name         string
		decide       DecisionFunc
		key          string
		values       []float64
		wantDecision string
	}{
		{"unsigned technical signal", decideTechnical, "signal", []float64{-0.05, 0, 0.05}, LabelBearishTechnical},
		{"unsigned technical signal near one", decideTechnical, "signal", []float64{0.95, 1, 1.05}, LabelBullishTechnical},
		{"signed sentiment around zero", decideSentiment, "sentiment_score", []float64{-0.05, 0, 0.05}, LabelNeutralSentiment},
		{"signed sentiment near minus one", decideSentiment, "sentiment_score", []float64{-1.05, -1, -0.95}, LabelBearishSentiment},
		{"signed sentiment near one", decideSentiment, "sentiment_score", []float64{0.95, 1, 1.05}, LabelBullishSentiment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.values {
				verdict, err := tt.decide(DecisionInput{
					Outputs:  []models.ModelOutput{{ModelID: "m", Payload: map[string]interface{}{tt.key: v}, Succeeded: true}},
					Assigned: 1,
				})
				require.NoError(t, err)
				assert.Equal(t, tt.wantDecision, verdict.Decision, "value %v", v)
			}
		})
	}
}

func TestDecideVolatility(t *testing.T) {
	tests := []struct {
		name         string
		payload      map[string]interface{}
		wantDecision string
	}{
		{"elevated forecast", map[string]interface{}{"volatility_forecast": 0.35}, LabelHighVolatility},
		{"calm forecast", map[string]interface{}{"predicted_volatility": 0.10}, LabelLowVolatility},
		{"normal forecast", map[string]interface{}{"vol": 0.22}, LabelNormalVolatility},
		{"percent key", map[string]interface{}{"volatility_pct": 12.0}, LabelLowVolatility},
		{"percent string", map[string]interface{}{"volatility_forecast": "35%"}, LabelHighVolatility},
		{"unscaled figure above one is not a percentage", map[string]interface{}{"volatility": 1.2}, LabelHighVolatility},
		{"regime string", map[string]interface{}{"volatility_regime": "elevated"}, LabelHighVolatility},
		{"nothing usable defaults to normal", map[string]interface{}{"volatility_regime": "unknown"}, LabelNormalVolatility},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := decideVolatility(DecisionInput{
				Outputs:  []models.ModelOutput{{ModelID: "vol_garch_1", Payload: tt.payload, Succeeded: true}},
				Assigned: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
		})
	}
}

func TestDecisionFunctions_MissingKeysUseRoleDefaults(t *testing.T) {
	tests := []struct {
		name         string
		decide       DecisionFunc
		wantDecision string
	}{
		{"risk", decideRisk, LabelLowRisk},
		{"portfolio", decidePortfolio, LabelPortfolioOptimal},
		{"sentiment", decideSentiment, LabelNeutralSentiment},
		{"technical", decideTechnical, LabelNeutralTechnical},
		{"volatility", decideVolatility, LabelNormalVolatility},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := tt.decide(DecisionInput{
				Outputs:  []models.ModelOutput{{ModelID: "m", Payload: map[string]interface{}{"foo": 1}, Succeeded: true}},
				Assigned: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, verdict.Decision)
			assert.Equal(t, defaultedConfidence, verdict.Confidence)
			assert.Equal(t, true, verdict.SupportingData["defaulted"])
		})
	}
}

func TestDefaultedDecisionsKeepConsensusOnRoleLabels(t *testing.T) {
	decide := func(id string, role models.Role, fn DecisionFunc, payload map[string]interface{}) models.AgentDecision {
		verdict, err := fn(DecisionInput{
			Outputs:  []models.ModelOutput{{ModelID: id, Payload: payload, Succeeded: true}},
			Assigned: 1,
		})
		require.NoError(t, err)
		return models.AgentDecision{AgentID: id, Role: role, Decision: verdict.Decision, Confidence: verdict.Confidence}
	}

	decisions := []models.AgentDecision{
		decide("risk", models.RoleRiskManager, decideRisk, map[string]interface{}{"var_95": -0.04}),
		decide("tech_a", models.RoleTechnicalAnalyst, decideTechnical, map[string]interface{}{"foo": 1}),
		decide("tech_b", models.RoleTechnicalAnalyst, decideTechnical, map[string]interface{}{"foo": 1}),
	}

	dominant, count := DominantDecision(decisions)
	assert.Equal(t, LabelNeutralTechnical, dominant)
	assert.Equal(t, 2, count)

	score := Score(decisions)
	assert.InDelta(t, 0.6667, score.ConsensusLevel, 1e-9)
	assert.InDelta(t, 0.4167, score.EnsembleConfidence, 1e-9)

	insights := Synthesize(decisions)
	require.Len(t, insights, 2)
	assert.Equal(t, InsightRiskAssessment, insights[0].InsightType)
	assert.Equal(t, InsightTechnicalAnalysis, insights[1].InsightType)
}

func TestDecideCoordinationAndGeneric(t *testing.T) {
	in := DecisionInput{
		Outputs:   []models.ModelOutput{{ModelID: "b", Succeeded: true}, {ModelID: "a", Succeeded: true}},
		Assigned:  4,
		Portfolio: samplePortfolio(),
		Market:    models.MarketContext{MarketRegime: "bull", VolatilityRegime: "low"},
	}

	verdict, err := decideCoordination(in)
	require.NoError(t, err)
	assert.Equal(t, LabelCoordinationComplete, verdict.Decision)
	assert.InDelta(t, 0.5, verdict.Confidence, 1e-9)
	assert.Equal(t, []string{"a", "b"}, verdict.SupportingData["context_models"])
	assert.Equal(t, "CSL", verdict.SupportingData["largest_position"])

	verdict, err = decideGeneric(in)
	require.NoError(t, err)
	assert.Equal(t, LabelAnalysisComplete, verdict.Decision)
	assert.Equal(t, 2, verdict.SupportingData["outputs_processed"])
	assert.InDelta(t, 0.25, verdict.Confidence, 1e-9)
}

func TestRegistryLookupFallsBackToGeneric(t *testing.T) {
	registry := NewDefaultRegistry()

	verdict, err := registry.Lookup(models.Role("compliance_officer"))(DecisionInput{Assigned: 1})
	require.NoError(t, err)
	assert.Equal(t, LabelAnalysisComplete, verdict.Decision)

	registry.Register(models.Role("compliance_officer"), func(in DecisionInput) (Verdict, error) {
		return Verdict{Decision: "COMPLIANT", Confidence: 1}, nil
	})
	verdict, err = registry.Lookup(models.Role("compliance_officer"))(DecisionInput{})
	require.NoError(t, err)
	assert.Equal(t, "COMPLIANT", verdict.Decision)
}
