package common

import (
	"fmt"

	"github.com/google/uuid"
)

// NewEnsembleID generates a unique ensemble ID with the "ens_" prefix
// Format: ens_<uuid>
func NewEnsembleID() string {
	return "ens_" + uuid.New().String()
}

// NewResultID generates a unique analysis result ID with the "res_" prefix
func NewResultID() string {
	return "res_" + uuid.New().String()
}

// NewAgentID derives a readable agent id from its role and ensemble,
// e.g. risk_manager_agent_1a2b3c4d
func NewAgentID(role string, ensembleID string) string {
	suffix := ensembleID
	if parsed, err := uuid.Parse(trimIDPrefix(ensembleID)); err == nil {
		suffix = parsed.String()[:8]
	}
	return fmt.Sprintf("%s_agent_%s", role, suffix)
}

func trimIDPrefix(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			return id[i+1:]
		}
	}
	return id
}
