package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/advisor/internal/models"
)

// formatResultSummary formats one analysis result as markdown
func formatResultSummary(result *models.EnsembleResult) string {
	var sb strings.Builder
	s := result.Summary
	sb.WriteString(fmt.Sprintf("## Ensemble Analysis %s\n\n", result.ResultID))
	sb.WriteString(fmt.Sprintf("**Agents:** %d (%d successful, %d failed)\n", s.TotalAgents, s.SuccessfulAgents, s.FailedAgents))
	sb.WriteString(fmt.Sprintf("**Consensus:** %.2f  **Confidence:** %.2f\n", result.Consensus.ConsensusLevel, result.ConfidenceScore))
	if s.DominantDecision != "" {
		sb.WriteString(fmt.Sprintf("**Dominant decision:** %s\n", s.DominantDecision))
	}
	if s.LowAgreement {
		sb.WriteString("**Warning:** agents disagree, treat recommendations with caution\n")
	}
	sb.WriteString("\n")

	if len(result.Recommendations) == 0 {
		sb.WriteString("No recommendations.\n")
		return sb.String()
	}

	sb.WriteString("### Recommendations\n")
	for i, rec := range result.Recommendations {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s: %s (confidence %.2f, severity %s)\n",
			i+1, strings.ToUpper(string(rec.Priority)), rec.Title, rec.Action, rec.Confidence, rec.Severity))
	}
	return sb.String()
}

// formatEnsembleList formats stored ensembles as markdown
func formatEnsembleList(ensembles []*models.EnsembleConfiguration) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Ensembles (%d)\n\n", len(ensembles)))

	if len(ensembles) == 0 {
		sb.WriteString("No ensembles found.\n")
		return sb.String()
	}

	for _, e := range ensembles {
		sb.WriteString(fmt.Sprintf("### %s\n", e.EnsembleID))
		sb.WriteString(fmt.Sprintf("**Mode:** %s  **Created:** %s\n", e.Mode, e.CreatedAt.Format(time.RFC3339)))
		for _, id := range e.AgentIDs() {
			agent := e.Agents[id]
			sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", id, agent.Role, strings.Join(agent.ModelIDs, ", ")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatResultHistory formats the stored results of one ensemble as markdown
func formatResultHistory(ensembleID string, results []*models.EnsembleResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Results for %s (%d)\n\n", ensembleID, len(results)))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- %s at %s: consensus %.2f, confidence %.2f, %d insights",
			r.ResultID, r.CreatedAt.Format(time.RFC3339), r.Consensus.ConsensusLevel, r.ConfidenceScore, len(r.Insights)))
		if r.Summary.DominantDecision != "" {
			sb.WriteString(fmt.Sprintf(", dominant %s", r.Summary.DominantDecision))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
