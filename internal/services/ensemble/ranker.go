package ensemble

import (
	"sort"

	"github.com/ternarybob/advisor/internal/models"
)

// severityPriority maps insight severity to an action tier
var severityPriority = map[models.Severity]models.Priority{
	models.SeverityHigh:   models.PriorityImmediate,
	models.SeverityMedium: models.PriorityHigh,
	models.SeverityLow:    models.PriorityNormal,
}

// PriorityFor returns the action tier of a severity; unknown severities rank as normal
func PriorityFor(severity models.Severity) models.Priority {
	if p, ok := severityPriority[severity]; ok {
		return p
	}
	return models.PriorityNormal
}

// Rank converts insights into recommendations ordered by priority tier, then confidence,
// both descending. Equal entries keep their input order.
func Rank(insights []models.EnsembleInsight) []models.Recommendation {
	recommendations := make([]models.Recommendation, 0, len(insights))
	for _, insight := range insights {
		recommendations = append(recommendations, models.Recommendation{
			Priority:    PriorityFor(insight.Severity),
			InsightType: insight.InsightType,
			Title:       insight.Title,
			Action:      insight.Recommendation,
			Confidence:  insight.Confidence,
			Severity:    insight.Severity,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		pi, pj := recommendations[i].Priority.Rank(), recommendations[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return recommendations[i].Confidence > recommendations[j].Confidence
	})

	return recommendations
}
