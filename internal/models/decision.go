package models

import "time"

// ModelOutput is the normalized result of one predictive model invocation.
// It lives for one analysis cycle only.
type ModelOutput struct {
	ModelID   string                 `json:"model_id"`
	Payload   map[string]interface{} `json:"payload"`
	Succeeded bool                   `json:"succeeded"`
	Error     string                 `json:"error,omitempty"`
}

// DecisionError is the sentinel label an agent reports when its analysis faults
const DecisionError = "ERROR"

// AgentDecision is an agent's conclusion for one analysis cycle
type AgentDecision struct {
	AgentID         string                 `json:"agent_id"`
	Role            Role                   `json:"role"`
	Decision        string                 `json:"decision"`   // categorical label, e.g. HIGH_RISK_ALERT
	Confidence      float64                `json:"confidence"` // always within [0,1]
	Reasoning       string                 `json:"reasoning"`
	SupportingData  map[string]interface{} `json:"supporting_data"`
	Timestamp       time.Time              `json:"timestamp"`
	RawModelOutputs []ModelOutput          `json:"raw_model_outputs"`
}

// IsError reports whether the decision is the error sentinel
func (d *AgentDecision) IsError() bool {
	return d.Decision == DecisionError
}

// Severity is the impact axis of an insight, independent of its confidence
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EnsembleInsight is a severity-scored finding synthesized from decisions sharing a topic
type EnsembleInsight struct {
	InsightType         string    `json:"insight_type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Confidence          float64   `json:"confidence"`
	Severity            Severity  `json:"severity"`
	Recommendation      string    `json:"recommendation"`
	SupportingAgentIDs  []string  `json:"supporting_agent_ids"`
	ConflictingAgentIDs []string  `json:"conflicting_agent_ids"`
	DataSources         []string  `json:"data_sources"`
	Timestamp           time.Time `json:"timestamp"`
}

// Priority is the action tier of a recommendation
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityNormal    Priority = "normal"
)

// Rank orders priorities, higher is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityImmediate:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	}
	return 0
}

// Recommendation is one actionable item derived from an insight
type Recommendation struct {
	Priority    Priority `json:"priority"`
	InsightType string   `json:"insight_type"`
	Title       string   `json:"title"`
	Action      string   `json:"action"`
	Confidence  float64  `json:"confidence"`
	Severity    Severity `json:"severity"`
}

// ConsensusScore is the ensemble-wide agreement and certainty
type ConsensusScore struct {
	EnsembleConfidence float64 `json:"ensemble_confidence"`
	ConsensusLevel     float64 `json:"consensus_level"`
}

// ResultSummary condenses one analysis cycle
type ResultSummary struct {
	TotalAgents        int               `json:"total_agents"`
	SuccessfulAgents   int               `json:"successful_agents"`
	FailedAgents       int               `json:"failed_agents"`
	ConsensusLevel     float64           `json:"consensus_level"`
	EnsembleConfidence float64           `json:"ensemble_confidence"`
	InsightCount       int               `json:"insight_count"`
	HighSeverityCount  int               `json:"high_severity_count"`
	DominantDecision   string            `json:"dominant_decision"`
	LowAgreement       bool              `json:"low_agreement"`
	DurationMs         int64             `json:"duration_ms"`
	Mode               CollaborationMode `json:"mode"`
	Depth              AnalysisDepth     `json:"depth"`
}

// EnsembleResult is the full output of one analysis cycle
type EnsembleResult struct {
	ResultID        string            `json:"result_id"`
	EnsembleID      string            `json:"ensemble_id" badgerhold:"index"`
	AgentDecisions  []AgentDecision   `json:"agent_decisions"`
	Insights        []EnsembleInsight `json:"insights"`
	Summary         ResultSummary     `json:"summary"`
	Recommendations []Recommendation  `json:"recommendations"`
	// ConfidenceScore is the mean confidence of the opinion decisions. ERROR and
	// coordinator decisions are left out; summary.failed_agents counts the errors.
	ConfidenceScore float64           `json:"confidence_score"`
	Consensus       ConsensusScore    `json:"consensus"`
	CreatedAt       time.Time         `json:"created_at"`
}
