package ensemble

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/advisor/internal/models"
)

// Insight types
const (
	InsightRiskAssessment        = "risk_assessment"
	InsightPortfolioOptimization = "portfolio_optimization"
	InsightTechnicalAnalysis     = "technical_analysis"
	InsightSentimentAnalysis     = "sentiment_analysis"
	InsightVolatilityAnalysis    = "volatility_analysis"
)

// insightCategory describes how decisions of one topic are grouped and judged
type insightCategory struct {
	insightType string
	topic       string
	keywords    []string // a decision joins the category when its label contains any keyword
	alarming    string   // sub-label counted towards severity
	opposing    string   // sub-label that conflicts with alarming; empty when the category has no opposition
	actions     map[models.Severity]string
}

// insightCategories is the fixed set of categories, in output order
var insightCategories = []insightCategory{
	{
		insightType: InsightRiskAssessment,
		topic:       "Risk",
		keywords:    []string{"RISK"},
		alarming:    "HIGH_RISK",
		opposing:    "LOW_RISK",
		actions: map[models.Severity]string{
			models.SeverityHigh:   "Reduce exposure to positions driving tail risk and review hedges",
			models.SeverityMedium: "Monitor flagged risk exposures and tighten position limits",
			models.SeverityLow:    "Risk is within tolerance; maintain current risk controls",
		},
	},
	{
		insightType: InsightPortfolioOptimization,
		topic:       "Portfolio optimization",
		keywords:    []string{"REBALANCE", "PORTFOLIO"},
		alarming:    "REBALANCE",
		opposing:    "OPTIMAL",
		actions: map[models.Severity]string{
			models.SeverityHigh:   "Rebalance towards the optimized allocation and trim concentrated positions",
			models.SeverityMedium: "Review allocation drift and plan a partial rebalance",
			models.SeverityLow:    "Allocation is efficient; no rebalancing needed",
		},
	},
	{
		insightType: InsightTechnicalAnalysis,
		topic:       "Technical",
		keywords:    []string{"TECHNICAL"},
		alarming:    "BEARISH",
		opposing:    "BULLISH",
		actions: map[models.Severity]string{
			models.SeverityHigh:   "Technical signals are bearish; consider reducing exposure or tightening stops",
			models.SeverityMedium: "Technical signals are mixed; wait for confirmation before adding exposure",
			models.SeverityLow:    "Technical signals are supportive; maintain or add on strength",
		},
	},
	{
		insightType: InsightSentimentAnalysis,
		topic:       "Sentiment",
		keywords:    []string{"SENTIMENT"},
		alarming:    "BEARISH",
		opposing:    "BULLISH",
		actions: map[models.Severity]string{
			models.SeverityHigh:   "Sentiment is negative; watch for news-driven drawdowns",
			models.SeverityMedium: "Sentiment is mixed; monitor news flow closely",
			models.SeverityLow:    "Sentiment is constructive; no action required",
		},
	},
	{
		insightType: InsightVolatilityAnalysis,
		topic:       "Volatility",
		keywords:    []string{"VOLATILITY"},
		alarming:    "HIGH_VOLATILITY",
		opposing:    "LOW_VOLATILITY",
		actions: map[models.Severity]string{
			models.SeverityHigh:   "Volatility is elevated; reduce position sizes and consider protective options",
			models.SeverityMedium: "Volatility is rising in parts of the ensemble; review position sizing",
			models.SeverityLow:    "Volatility is contained; current sizing is appropriate",
		},
	},
}

func (c insightCategory) matches(label string) bool {
	upper := strings.ToUpper(label)
	for _, k := range c.keywords {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// Synthesize groups decisions by topical category and derives one insight per non-empty
// category. The output depends only on the set of decisions, not their order.
func Synthesize(decisions []models.AgentDecision) []models.EnsembleInsight {
	insights := make([]models.EnsembleInsight, 0, len(insightCategories))

	for _, category := range insightCategories {
		var group []models.AgentDecision
		for _, d := range decisions {
			if category.matches(d.Decision) {
				group = append(group, d)
			}
		}
		if len(group) == 0 {
			continue
		}
		insights = append(insights, synthesizeCategory(category, group))
	}

	return insights
}

func synthesizeCategory(category insightCategory, group []models.AgentDecision) models.EnsembleInsight {
	var supporting, alarmingIDs, opposingIDs []string
	labelCounts := make(map[string]int)
	confidences := make([]float64, 0, len(group))
	sources := make(map[string]bool)
	var latest time.Time

	for _, d := range group {
		supporting = append(supporting, d.AgentID)
		labelCounts[d.Decision]++
		confidences = append(confidences, d.Confidence)
		if d.Timestamp.After(latest) {
			latest = d.Timestamp
		}

		upper := strings.ToUpper(d.Decision)
		if strings.Contains(upper, category.alarming) {
			alarmingIDs = append(alarmingIDs, d.AgentID)
		} else if category.opposing != "" && strings.Contains(upper, category.opposing) {
			opposingIDs = append(opposingIDs, d.AgentID)
		}

		for _, out := range d.RawModelOutputs {
			if out.Succeeded {
				sources[out.ModelID] = true
			}
		}
	}
	sort.Strings(supporting)
	sort.Float64s(confidences)
	sort.Strings(alarmingIDs)
	sort.Strings(opposingIDs)

	severity := models.SeverityLow
	switch {
	case float64(len(alarmingIDs)) > float64(len(group))/2:
		severity = models.SeverityHigh
	case len(alarmingIDs) > 0:
		severity = models.SeverityMedium
	}

	// Opposed sub-labels side by side: the smaller side conflicts with the group, both sides on a tie
	conflicting := []string{}
	if len(alarmingIDs) > 0 && len(opposingIDs) > 0 {
		switch {
		case len(alarmingIDs) < len(opposingIDs):
			conflicting = append(conflicting, alarmingIDs...)
		case len(opposingIDs) < len(alarmingIDs):
			conflicting = append(conflicting, opposingIDs...)
		default:
			conflicting = append(conflicting, alarmingIDs...)
			conflicting = append(conflicting, opposingIDs...)
			sort.Strings(conflicting)
		}
	}

	dataSources := make([]string, 0, len(sources))
	for s := range sources {
		dataSources = append(dataSources, s)
	}
	sort.Strings(dataSources)

	return models.EnsembleInsight{
		InsightType:         category.insightType,
		Title:               fmt.Sprintf("%s: %d of %d agent(s) alarming", category.topic, len(alarmingIDs), len(group)),
		Description:         fmt.Sprintf("%s decisions %s from agents %s", category.topic, formatLabelCounts(labelCounts), strings.Join(supporting, ", ")),
		Confidence:          round4(mean(confidences)),
		Severity:            severity,
		Recommendation:      category.actions[severity],
		SupportingAgentIDs:  supporting,
		ConflictingAgentIDs: conflicting,
		DataSources:         dataSources,
		Timestamp:           latest,
	}
}

func formatLabelCounts(counts map[string]int) string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s x%d", label, counts[label]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
