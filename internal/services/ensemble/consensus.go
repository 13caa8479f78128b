package ensemble

import (
	"sort"

	"github.com/ternarybob/advisor/internal/models"
)

// Score computes ensemble-wide certainty and agreement. An empty input yields
// confidence 0 and consensus 1.
func Score(decisions []models.AgentDecision) models.ConsensusScore {
	if len(decisions) == 0 {
		return models.ConsensusScore{EnsembleConfidence: 0, ConsensusLevel: 1}
	}

	confidences := make([]float64, 0, len(decisions))
	for _, d := range decisions {
		confidences = append(confidences, d.Confidence)
	}
	// Sorted so the floating point sum does not depend on input order
	sort.Float64s(confidences)

	consensus := 1.0
	if len(decisions) >= 2 {
		_, count := DominantDecision(decisions)
		consensus = float64(count) / float64(len(decisions))
	}

	return models.ConsensusScore{
		EnsembleConfidence: round4(mean(confidences)),
		ConsensusLevel:     round4(consensus),
	}
}

// DominantDecision returns the most frequent decision label and its count.
// Ties resolve to the lexically smallest label.
func DominantDecision(decisions []models.AgentDecision) (string, int) {
	counts := make(map[string]int)
	for _, d := range decisions {
		counts[d.Decision]++
	}

	best, bestCount := "", 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best, bestCount
}
