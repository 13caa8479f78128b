package models

import (
	"sort"
	"time"
)

// Role is the analytical specialty an agent is bound to
type Role string

const (
	RoleRiskManager        Role = "risk_manager"
	RolePortfolioOptimizer Role = "portfolio_optimizer"
	RoleSentimentAnalyst   Role = "sentiment_analyst"
	RoleTechnicalAnalyst   Role = "technical_analyst"
	RoleVolatilityExpert   Role = "volatility_expert"
	RoleCoordinator        Role = "coordinator"
)

// AllRoles lists the roles in their assignment priority order, coordinator last
func AllRoles() []Role {
	return []Role{
		RoleRiskManager,
		RolePortfolioOptimizer,
		RoleSentimentAnalyst,
		RoleTechnicalAnalyst,
		RoleVolatilityExpert,
		RoleCoordinator,
	}
}

// IsValid reports whether the role is one of the known roles
func (r Role) IsValid() bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// CollaborationMode controls how agents of an ensemble are driven
type CollaborationMode string

const (
	ModeParallel   CollaborationMode = "parallel"
	ModeSequential CollaborationMode = "sequential"
	ModeConsensus  CollaborationMode = "consensus"
)

// IsValid reports whether the mode is supported
func (m CollaborationMode) IsValid() bool {
	switch m {
	case ModeParallel, ModeSequential, ModeConsensus:
		return true
	}
	return false
}

// AnalysisDepth controls how much work one analysis cycle performs
type AnalysisDepth string

const (
	DepthQuick         AnalysisDepth = "quick"
	DepthStandard      AnalysisDepth = "standard"
	DepthComprehensive AnalysisDepth = "comprehensive"
)

// IsValid reports whether the depth is supported
func (d AnalysisDepth) IsValid() bool {
	switch d {
	case DepthQuick, DepthStandard, DepthComprehensive:
		return true
	}
	return false
}

// AgentAssignment binds one agent to its role and owned model ids
type AgentAssignment struct {
	AgentID  string   `json:"agent_id"`
	Role     Role     `json:"role"`
	ModelIDs []string `json:"model_ids"`
}

// EnsembleConfiguration is the immutable agent-to-model assignment of one ensemble.
// Changing the model selection means building a new configuration.
type EnsembleConfiguration struct {
	EnsembleID string                     `json:"ensemble_id"`
	Agents     map[string]AgentAssignment `json:"agents"`
	Mode       CollaborationMode          `json:"mode"`
	ModelIDs   []string                   `json:"model_ids"`
	CreatedAt  time.Time                  `json:"created_at"`
}

// AgentIDs returns the agent ids in deterministic order
func (c *EnsembleConfiguration) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Roles returns the distinct roles present in the ensemble, in priority order
func (c *EnsembleConfiguration) Roles() []Role {
	present := make(map[Role]bool, len(c.Agents))
	for _, a := range c.Agents {
		present[a.Role] = true
	}
	var roles []Role
	for _, r := range AllRoles() {
		if present[r] {
			roles = append(roles, r)
		}
	}
	return roles
}

// ModelAssignments maps every agent id to the model ids it reads, the coordinator
// included. The coordinator's context models are also owned by a role agent, so one
// model id can appear under two agent ids.
func (c *EnsembleConfiguration) ModelAssignments() map[string][]string {
	out := make(map[string][]string, len(c.Agents))
	for id, a := range c.Agents {
		ids := make([]string, len(a.ModelIDs))
		copy(ids, a.ModelIDs)
		out[id] = ids
	}
	return out
}

// IsReady reports whether the configuration can run an analysis cycle
func (c *EnsembleConfiguration) IsReady() bool {
	return c != nil && c.EnsembleID != "" && len(c.Agents) > 0
}
