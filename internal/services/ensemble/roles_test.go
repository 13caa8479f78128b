package ensemble

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/advisor/internal/models"
)

func TestRoleResolver_Classify(t *testing.T) {
	resolver := NewRoleResolver()

	tests := []struct {
		modelID string
		want    models.Role
	}{
		{"risk_var_95", models.RoleRiskManager},
		{"Tail_Hedge_Monitor", models.RoleRiskManager},
		{"stress_test_2008", models.RoleRiskManager},
		{"portfolio_mvo", models.RolePortfolioOptimizer},
		{"factor_exposure", models.RolePortfolioOptimizer},
		{"news_nlp", models.RoleSentimentAnalyst},
		{"options_flow", models.RoleSentimentAnalyst},
		{"tech_momentum_1", models.RoleTechnicalAnalyst},
		{"mean_reversion_5d", models.RoleTechnicalAnalyst},
		{"microstructure_imbalance", models.RoleTechnicalAnalyst},
		{"vol_garch_1", models.RoleVolatilityExpert},
		{"GARCH_11", models.RoleVolatilityExpert},
		// first matching rule wins
		{"risk_parity_allocation", models.RoleRiskManager},
		{"sentiment_momentum", models.RoleSentimentAnalyst},
		{"price_volatility", models.RoleTechnicalAnalyst},
		// default role
		{"xgboost_alpha", models.RoleTechnicalAnalyst},
		{"lstm_v2", models.RoleTechnicalAnalyst},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.Classify(tt.modelID))
		})
	}
}

func TestRoleResolver_AssignExample(t *testing.T) {
	resolver := NewRoleResolver()

	got := resolver.Assign([]string{"risk_var_95", "tech_momentum_1", "vol_garch_1"})

	assert.Equal(t, map[models.Role][]string{
		models.RoleRiskManager:      {"risk_var_95"},
		models.RoleTechnicalAnalyst: {"tech_momentum_1"},
		models.RoleVolatilityExpert: {"vol_garch_1"},
	}, got)
}

func TestRoleResolver_AssignNeverEmitsEmptyLists(t *testing.T) {
	resolver := NewRoleResolver()

	assert.Empty(t, resolver.Assign(nil))
	assert.Empty(t, resolver.Assign([]string{"", "  "}))

	for role, ids := range resolver.Assign([]string{"risk_a", "news_b"}) {
		assert.NotEmpty(t, ids, "role %s", role)
	}
}

func TestRoleResolver_AssignSkipsDuplicates(t *testing.T) {
	resolver := NewRoleResolver()

	got := resolver.Assign([]string{"risk_var_95", "risk_var_95", " risk_var_95 "})

	assert.Equal(t, []string{"risk_var_95"}, got[models.RoleRiskManager])
}

func TestRoleResolver_AssignmentCompleteness(t *testing.T) {
	resolver := NewRoleResolver()
	vocabulary := []string{"risk", "var", "alloc", "news", "trend", "garch", "alpha", "beta", "social", "price", "misc"}

	for n := 1; n <= 40; n++ {
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, fmt.Sprintf("%s_%s_%d", vocabulary[(i*7+n)%len(vocabulary)], vocabulary[(i*3)%len(vocabulary)], i))
		}

		assignments := resolver.Assign(ids)

		seen := make(map[string]int)
		for _, assigned := range assignments {
			for _, id := range assigned {
				seen[id]++
			}
		}
		assert.Len(t, seen, n)
		for _, id := range ids {
			assert.Equal(t, 1, seen[id], "model %s must be assigned exactly once", id)
		}
	}
}
