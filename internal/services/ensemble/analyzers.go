package ensemble

import (
	"fmt"
	"sort"
	"strings"
)

// Decision labels produced by the built-in analyzers
const (
	LabelHighRiskAlert        = "HIGH_RISK_ALERT"
	LabelModerateRisk         = "MODERATE_RISK"
	LabelLowRisk              = "LOW_RISK"
	LabelRebalanceRequired    = "REBALANCE_REQUIRED"
	LabelPortfolioOptimal     = "PORTFOLIO_OPTIMAL"
	LabelBullishSentiment     = "BULLISH_SENTIMENT"
	LabelBearishSentiment     = "BEARISH_SENTIMENT"
	LabelNeutralSentiment     = "NEUTRAL_SENTIMENT"
	LabelBullishTechnical     = "BULLISH_TECHNICAL"
	LabelBearishTechnical     = "BEARISH_TECHNICAL"
	LabelNeutralTechnical     = "NEUTRAL_TECHNICAL"
	LabelHighVolatility       = "HIGH_VOLATILITY"
	LabelLowVolatility        = "LOW_VOLATILITY"
	LabelNormalVolatility     = "NORMAL_VOLATILITY"
	LabelAnalysisComplete     = "ANALYSIS_COMPLETE"
	LabelCoordinationComplete = "COORDINATION_COMPLETE"
)

// Scoring thresholds
const (
	tailHighThreshold     = -0.03
	tailModerateThreshold = -0.02
	tailHighScore         = 0.8
	tailModerateScore     = 0.6
	tailLowScore          = 0.3
	riskAlertAverage      = 0.7
	riskModerateAverage   = 0.5

	minSharpe         = 0.8
	maxPositionWeight = 0.4

	bullishThreshold = 0.7
	bearishThreshold = 0.3

	highVolatility = 0.30
	lowVolatility  = 0.15

	// Confidence spans [confidenceBase, confidenceBase+confidenceSpan] and grows with the
	// share of owned models whose individual reading agrees with the agent's decision
	confidenceBase = 0.5
	confidenceSpan = 0.35

	// Confidence of a verdict built from default readings only
	defaultedConfidence = 0.2
)

var (
	tailKeys       = []string{"var_95", "var", "value_at_risk", "tail_risk", "var_99", "cvar", "expected_shortfall", "tail_loss", "risk.var_95", "risk.var", "var_95_pct", "tail_risk_pct"}
	sharpeKeys     = []string{"sharpe_ratio", "sharpe", "expected_sharpe", "portfolio_sharpe", "metrics.sharpe_ratio"}
	allocationKeys = []string{"allocation", "allocations", "optimal_weights", "target_weights", "weights"}
	sentimentKeys  = []string{"sentiment_score", "sentiment", "bullish_probability", "news_sentiment", "social_sentiment", "signal", "score"}
	technicalKeys  = []string{"signal", "technical_score", "momentum_score", "trend_strength", "bullish_probability", "strength", "score"}
	directionKeys  = []string{"direction", "signal_direction", "trend", "sentiment_label", "sentiment"}
	volatilityKeys = []string{"volatility_forecast", "predicted_volatility", "forecast_volatility", "annualized_volatility", "garch_volatility", "volatility", "vol", "volatility_pct"}
	regimeKeys     = []string{"volatility_regime", "regime"}

	// Keys whose readings span [-1,1]; every other signal key spans [0,1]
	signedSignalKeys = map[string]bool{
		"sentiment_score":  true,
		"sentiment":        true,
		"news_sentiment":   true,
		"social_sentiment": true,
	}
)

func agreementConfidence(agreeing, assigned int) float64 {
	if assigned <= 0 {
		return 0
	}
	return confidenceBase + confidenceSpan*float64(agreeing)/float64(assigned)
}

// defaultVerdict is returned when no owned model reported a usable reading. Missing
// readings take the role's default so the agent still answers with one of its labels.
func defaultVerdict(in DecisionInput, decision, what string, supporting map[string]interface{}) Verdict {
	supporting["defaulted"] = true
	return Verdict{
		Decision:   decision,
		Confidence: defaultedConfidence,
		Reasoning: fmt.Sprintf("No %s reported (%d of %d models returned output); defaults applied",
			what, len(in.Outputs), in.Assigned),
		SupportingData: supporting,
	}
}

// decideRisk scores each tail/VaR figure and averages the scores
func decideRisk(in DecisionInput) (Verdict, error) {
	var scores []float64
	var factors []string
	modelScores := make(map[string]float64)

	for _, out := range in.Outputs {
		tail, key, ok := lookupFloat(out.Payload, tailKeys...)
		if !ok {
			continue
		}

		score, level := tailLowScore, "low"
		switch {
		case tail < tailHighThreshold:
			score, level = tailHighScore, "high"
		case tail < tailModerateThreshold:
			score, level = tailModerateScore, "moderate"
		}
		scores = append(scores, score)
		modelScores[out.ModelID] = score
		factors = append(factors, fmt.Sprintf("%s %s=%.2f%% (%s)", out.ModelID, key, tail*100, level))
	}

	if len(scores) == 0 {
		return defaultVerdict(in, LabelLowRisk, "tail or VaR figure", map[string]interface{}{
			"average_risk_score": tailLowScore,
		}), nil
	}

	avg := mean(scores)
	decision, bucket := LabelLowRisk, tailLowScore
	switch {
	case avg > riskAlertAverage:
		decision, bucket = LabelHighRiskAlert, tailHighScore
	case avg > riskModerateAverage:
		decision, bucket = LabelModerateRisk, tailModerateScore
	}

	agreeing := 0
	for _, s := range scores {
		if s == bucket {
			agreeing++
		}
	}

	return Verdict{
		Decision:   decision,
		Confidence: agreementConfidence(agreeing, in.Assigned),
		Reasoning:  fmt.Sprintf("Average risk score %.2f from %d model(s): %s", avg, len(scores), strings.Join(factors, "; ")),
		SupportingData: map[string]interface{}{
			"average_risk_score": round4(avg),
			"risk_factors":       factors,
			"model_scores":       modelScores,
		},
	}, nil
}

// decidePortfolio flags a rebalance when the Sharpe figure is weak or a single position is too heavy
func decidePortfolio(in DecisionInput) (Verdict, error) {
	var sharpes []float64
	var evaluations []bool
	heaviestSymbol, heaviestWeight := "", 0.0
	var issues []string

	for _, out := range in.Outputs {
		sharpe, _, hasSharpe := lookupFloat(out.Payload, sharpeKeys...)
		weights, hasAlloc := lookupWeights(out.Payload, allocationKeys...)
		if !hasSharpe && !hasAlloc {
			continue
		}

		flagged := false
		if hasSharpe {
			sharpes = append(sharpes, sharpe)
			if sharpe < minSharpe {
				flagged = true
			}
		}
		if hasAlloc {
			symbol, w := maxWeight(weights)
			if w > maxPositionWeight {
				flagged = true
			}
			if w > heaviestWeight || (w == heaviestWeight && symbol < heaviestSymbol) {
				heaviestSymbol, heaviestWeight = symbol, w
			}
		}
		evaluations = append(evaluations, flagged)
	}

	source := "model allocation"
	if heaviestSymbol == "" && len(in.Portfolio.Holdings) > 0 {
		heaviestSymbol, heaviestWeight = maxWeight(in.Portfolio.Weights())
		source = "current holdings"
	}

	if len(evaluations) == 0 && heaviestSymbol == "" {
		return defaultVerdict(in, LabelPortfolioOptimal, "Sharpe figure or allocation", map[string]interface{}{
			"issues": []string{},
		}), nil
	}

	supporting := map[string]interface{}{}
	if len(sharpes) > 0 {
		avgSharpe := mean(sharpes)
		supporting["average_sharpe"] = round4(avgSharpe)
		if avgSharpe < minSharpe {
			issues = append(issues, fmt.Sprintf("Sharpe ratio %.2f below %.2f", avgSharpe, minSharpe))
		}
	}
	if heaviestSymbol != "" {
		supporting["max_position_symbol"] = heaviestSymbol
		supporting["max_position_weight"] = round4(heaviestWeight)
		supporting["weight_source"] = source
		if heaviestWeight > maxPositionWeight {
			issues = append(issues, fmt.Sprintf("%s weight %.0f%% exceeds %.0f%% (%s)", heaviestSymbol, heaviestWeight*100, maxPositionWeight*100, source))
		}
	}

	rebalance := len(issues) > 0
	decision := LabelPortfolioOptimal
	reasoning := "Sharpe ratio and position concentration within targets"
	if rebalance {
		decision = LabelRebalanceRequired
		reasoning = strings.Join(issues, "; ")
	}
	supporting["issues"] = issues

	agreeing := 0
	for _, flagged := range evaluations {
		if flagged == rebalance {
			agreeing++
		}
	}

	return Verdict{
		Decision:       decision,
		Confidence:     agreementConfidence(agreeing, in.Assigned),
		Reasoning:      reasoning,
		SupportingData: supporting,
	}, nil
}

type directionalLabels struct {
	bullish, bearish, neutral string
}

// normalizeSignal maps a directional reading onto [0,1] with 0.5 as neutral. The
// scale is fixed by the key, never guessed from the value.
func normalizeSignal(key string, v float64) float64 {
	if signedSignalKeys[key] {
		return clamp01((v + 1) / 2)
	}
	return clamp01(v)
}

func directionFromString(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "bullish", "positive", "up", "buy", "long", "uptrend":
		return 1, true
	case "bearish", "negative", "down", "sell", "short", "downtrend":
		return 0, true
	case "neutral", "flat", "hold", "sideways":
		return 0.5, true
	}
	return 0, false
}

func bucketSignal(v float64, labels directionalLabels) string {
	switch {
	case v > bullishThreshold:
		return labels.bullish
	case v < bearishThreshold:
		return labels.bearish
	}
	return labels.neutral
}

func decideDirectional(in DecisionInput, keys []string, labels directionalLabels, what string) (Verdict, error) {
	var signals []float64
	modelSignals := make(map[string]float64)

	for _, out := range in.Outputs {
		signal, key, ok := lookupFloat(out.Payload, keys...)
		if ok {
			signal = normalizeSignal(key, signal)
		} else if s, found := lookupString(out.Payload, directionKeys...); found {
			signal, ok = directionFromString(s)
		}
		if !ok {
			continue
		}
		signals = append(signals, signal)
		modelSignals[out.ModelID] = round4(signal)
	}

	if len(signals) == 0 {
		return defaultVerdict(in, labels.neutral, what+" signal", map[string]interface{}{
			"average_signal": 0.5,
		}), nil
	}

	avg := mean(signals)
	decision := bucketSignal(avg, labels)

	agreeing := 0
	for _, s := range signals {
		if bucketSignal(s, labels) == decision {
			agreeing++
		}
	}

	return Verdict{
		Decision:   decision,
		Confidence: agreementConfidence(agreeing, in.Assigned),
		Reasoning:  fmt.Sprintf("Average %s signal %.2f across %d model(s) (bullish > %.1f, bearish < %.1f)", what, avg, len(signals), bullishThreshold, bearishThreshold),
		SupportingData: map[string]interface{}{
			"average_signal": round4(avg),
			"model_signals":  modelSignals,
		},
	}, nil
}

func decideSentiment(in DecisionInput) (Verdict, error) {
	return decideDirectional(in, sentimentKeys, directionalLabels{
		bullish: LabelBullishSentiment,
		bearish: LabelBearishSentiment,
		neutral: LabelNeutralSentiment,
	}, "sentiment")
}

func decideTechnical(in DecisionInput) (Verdict, error) {
	return decideDirectional(in, technicalKeys, directionalLabels{
		bullish: LabelBullishTechnical,
		bearish: LabelBearishTechnical,
		neutral: LabelNeutralTechnical,
	}, "technical")
}

func volatilityLabel(v float64) string {
	switch {
	case v > highVolatility:
		return LabelHighVolatility
	case v < lowVolatility:
		return LabelLowVolatility
	}
	return LabelNormalVolatility
}

// decideVolatility averages annualized volatility forecasts into a regime
func decideVolatility(in DecisionInput) (Verdict, error) {
	var levels []float64
	modelLevels := make(map[string]float64)

	for _, out := range in.Outputs {
		level, _, ok := lookupFloat(out.Payload, volatilityKeys...)
		if !ok {
			regime, _ := lookupString(out.Payload, regimeKeys...)
			switch strings.ToLower(regime) {
			case "high", "elevated", "high_volatility":
				level, ok = highVolatility+0.1, true
			case "low", "calm", "low_volatility":
				level, ok = lowVolatility-0.05, true
			case "normal", "medium", "moderate":
				level, ok = (highVolatility+lowVolatility)/2, true
			}
		}
		if !ok {
			continue
		}
		levels = append(levels, level)
		modelLevels[out.ModelID] = round4(level)
	}

	if len(levels) == 0 {
		return defaultVerdict(in, LabelNormalVolatility, "volatility forecast", map[string]interface{}{
			"average_volatility": round4((highVolatility + lowVolatility) / 2),
		}), nil
	}

	avg := mean(levels)
	decision := volatilityLabel(avg)

	agreeing := 0
	for _, l := range levels {
		if volatilityLabel(l) == decision {
			agreeing++
		}
	}

	return Verdict{
		Decision:   decision,
		Confidence: agreementConfidence(agreeing, in.Assigned),
		Reasoning:  fmt.Sprintf("Average forecast volatility %.1f%% across %d model(s) (high > %.0f%%, low < %.0f%%)", avg*100, len(levels), highVolatility*100, lowVolatility*100),
		SupportingData: map[string]interface{}{
			"average_volatility": round4(avg),
			"model_volatility":   modelLevels,
		},
	}, nil
}

// decideCoordination summarizes the cross-cutting context of a cycle. Its confidence
// is the share of context models that answered.
func decideCoordination(in DecisionInput) (Verdict, error) {
	confidence := 0.0
	if in.Assigned > 0 {
		confidence = float64(len(in.Outputs)) / float64(in.Assigned)
	}

	contextModels := make([]string, 0, len(in.Outputs))
	for _, out := range in.Outputs {
		contextModels = append(contextModels, out.ModelID)
	}
	sort.Strings(contextModels)

	supporting := map[string]interface{}{
		"market_regime":     in.Market.MarketRegime,
		"volatility_regime": in.Market.VolatilityRegime,
		"market_sentiment":  in.Market.MarketSentiment,
		"holdings":          len(in.Portfolio.Holdings),
		"context_models":    contextModels,
	}
	if symbol, w := maxWeight(in.Portfolio.Weights()); symbol != "" {
		supporting["largest_position"] = symbol
		supporting["largest_position_weight"] = round4(w)
	}

	return Verdict{
		Decision:   LabelCoordinationComplete,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("Coordinated %d of %d context models; market regime %q, volatility regime %q",
			len(in.Outputs), in.Assigned, in.Market.MarketRegime, in.Market.VolatilityRegime),
		SupportingData: supporting,
	}, nil
}

// decideGeneric handles roles without a registered analyzer
func decideGeneric(in DecisionInput) (Verdict, error) {
	confidence := 0.0
	if in.Assigned > 0 {
		confidence = confidenceBase * float64(len(in.Outputs)) / float64(in.Assigned)
	}
	return Verdict{
		Decision:   LabelAnalysisComplete,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("Processed %d of %d model outputs", len(in.Outputs), in.Assigned),
		SupportingData: map[string]interface{}{
			"outputs_processed": len(in.Outputs),
		},
	}, nil
}
