package ensemble

import (
	"strings"

	"github.com/ternarybob/advisor/internal/models"
)

// roleRule maps a set of model-id keywords to a role
type roleRule struct {
	role     models.Role
	keywords []string // any keyword contained in the lower-cased model id triggers the rule
}

// defaultRoleRules defines all rules in priority order (first match wins)
var defaultRoleRules = []roleRule{
	{role: models.RoleRiskManager, keywords: []string{"risk", "var", "tail", "stress"}},
	{role: models.RolePortfolioOptimizer, keywords: []string{"portfolio", "optimization", "allocation", "factor"}},
	{role: models.RoleSentimentAnalyst, keywords: []string{"sentiment", "news", "social", "options"}},
	{role: models.RoleTechnicalAnalyst, keywords: []string{"momentum", "technical", "trend", "anomaly", "reversion", "price", "microstructure"}},
	{role: models.RoleVolatilityExpert, keywords: []string{"volatility", "vol", "garch"}},
}

// RoleResolver partitions model ids across roles using keyword rules.
// It holds no mutable state and is safe for concurrent use.
type RoleResolver struct {
	rules       []roleRule
	defaultRole models.Role
}

// NewRoleResolver creates a resolver with the built-in keyword rules.
// Unmatched models go to the technical analyst.
func NewRoleResolver() *RoleResolver {
	return &RoleResolver{
		rules:       defaultRoleRules,
		defaultRole: models.RoleTechnicalAnalyst,
	}
}

// Classify returns the role a single model id is assigned to
func (r *RoleResolver) Classify(modelID string) models.Role {
	id := strings.ToLower(modelID)
	for _, rule := range r.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(id, keyword) {
				return rule.role
			}
		}
	}
	return r.defaultRole
}

// Assign partitions model ids by role. Blank and repeated ids are skipped so every
// id lands in exactly one list, and only roles that received a model appear in the result.
func (r *RoleResolver) Assign(modelIDs []string) map[models.Role][]string {
	assignments := make(map[models.Role][]string)
	seen := make(map[string]bool, len(modelIDs))

	for _, raw := range modelIDs {
		modelID := strings.TrimSpace(raw)
		if modelID == "" || seen[modelID] {
			continue
		}
		seen[modelID] = true

		role := r.Classify(modelID)
		assignments[role] = append(assignments[role], modelID)
	}

	return assignments
}
