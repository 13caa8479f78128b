package models

import (
	"github.com/go-playground/validator/v10"
)

// Holding is one position of a portfolio snapshot
type Holding struct {
	Symbol string  `json:"symbol" toml:"symbol" yaml:"symbol" validate:"required"`
	Weight float64 `json:"weight" toml:"weight" yaml:"weight" validate:"gte=0,lte=1"`
	Value  float64 `json:"value,omitempty" toml:"value" yaml:"value"`
	Sector string  `json:"sector,omitempty" toml:"sector" yaml:"sector"`
}

// PortfolioSnapshot is the read-only portfolio context of one analysis cycle
type PortfolioSnapshot struct {
	PortfolioID string                 `json:"portfolio_id,omitempty" toml:"portfolio_id" yaml:"portfolio_id"`
	Holdings    []Holding              `json:"holdings" toml:"holdings" yaml:"holdings" validate:"dive"`
	TotalValue  float64                `json:"total_value,omitempty" toml:"total_value" yaml:"total_value" validate:"gte=0"`
	Cash        float64                `json:"cash,omitempty" toml:"cash" yaml:"cash" validate:"gte=0"`
	Attributes  map[string]interface{} `json:"attributes,omitempty" toml:"attributes" yaml:"attributes"`
}

// Clone returns a deep copy so callers cannot observe mutations made elsewhere
func (p PortfolioSnapshot) Clone() PortfolioSnapshot {
	out := p
	out.Holdings = append([]Holding(nil), p.Holdings...)
	out.Attributes = cloneMap(p.Attributes)
	return out
}

// Weights maps each symbol to its portfolio weight
func (p PortfolioSnapshot) Weights() map[string]float64 {
	weights := make(map[string]float64, len(p.Holdings))
	for _, h := range p.Holdings {
		weights[h.Symbol] += h.Weight
	}
	return weights
}

// Symbols returns the held symbols in snapshot order
func (p PortfolioSnapshot) Symbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}

// MarketContext is the market snapshot pulled once per analysis cycle
type MarketContext struct {
	MarketRegime       string             `json:"market_regime" toml:"market_regime"`
	VolatilityRegime   string             `json:"volatility_regime" toml:"volatility_regime"`
	MarketSentiment    string             `json:"market_sentiment" toml:"market_sentiment"`
	EconomicIndicators map[string]float64 `json:"economic_indicators" toml:"economic_indicators"`
}

// Clone returns a deep copy of the market context
func (m MarketContext) Clone() MarketContext {
	out := m
	if m.EconomicIndicators != nil {
		out.EconomicIndicators = make(map[string]float64, len(m.EconomicIndicators))
		for k, v := range m.EconomicIndicators {
			out.EconomicIndicators[k] = v
		}
	}
	return out
}

// Merge overlays the non-empty fields of other onto a copy of m
func (m MarketContext) Merge(other *MarketContext) MarketContext {
	out := m.Clone()
	if other == nil {
		return out
	}
	if other.MarketRegime != "" {
		out.MarketRegime = other.MarketRegime
	}
	if other.VolatilityRegime != "" {
		out.VolatilityRegime = other.VolatilityRegime
	}
	if other.MarketSentiment != "" {
		out.MarketSentiment = other.MarketSentiment
	}
	if len(other.EconomicIndicators) > 0 {
		if out.EconomicIndicators == nil {
			out.EconomicIndicators = make(map[string]float64, len(other.EconomicIndicators))
		}
		for k, v := range other.EconomicIndicators {
			out.EconomicIndicators[k] = v
		}
	}
	return out
}

// CreateEnsembleRequest selects the models an ensemble is built from
type CreateEnsembleRequest struct {
	ModelIDs []string          `json:"model_ids" validate:"required,min=1,dive,required"`
	Mode     CollaborationMode `json:"mode" validate:"omitempty,oneof=parallel sequential consensus"`
}

// Validate validates the request using go-playground/validator.
func (r *CreateEnsembleRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// CreateEnsembleResponse reports the outcome of building an ensemble
type CreateEnsembleResponse struct {
	Success          bool                `json:"success"`
	EnsembleID       string              `json:"ensemble_id,omitempty"`
	AgentsCreated    int                 `json:"agents_created"`
	AgentRoles       []Role              `json:"agent_roles"`
	ModelAssignments map[string][]string `json:"model_assignments"`
	Error            string              `json:"error,omitempty"`
}

// AnalyzeRequest runs one analysis cycle of an existing ensemble
type AnalyzeRequest struct {
	Portfolio       PortfolioSnapshot `json:"portfolio"`
	Depth           AnalysisDepth     `json:"depth" validate:"omitempty,oneof=quick standard comprehensive"`
	MarketOverrides *MarketContext    `json:"market_overrides,omitempty"`
}

// Validate validates the request using go-playground/validator.
func (r *AnalyzeRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// AnalyzeResponse wraps one analysis cycle outcome for callers
type AnalyzeResponse struct {
	Success bool            `json:"success"`
	Result  *EnsembleResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
