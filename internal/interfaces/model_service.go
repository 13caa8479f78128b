// -----------------------------------------------------------------------
// Last Modified: Tuesday, 6th October 2026 9:14:02 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// Prediction is the raw response of one external predictive model
type Prediction struct {
	Success    bool                   `json:"success" yaml:"success" toml:"success"`
	Prediction map[string]interface{} `json:"prediction,omitempty" yaml:"prediction" toml:"prediction"`
	Error      string                 `json:"error,omitempty" yaml:"error" toml:"error"`
}

// ModelPredictor invokes external predictive models. Implementations are black boxes:
// the payload shape is arbitrary and callers only inspect well-known keys.
type ModelPredictor interface {
	// Predict runs a model against the supplied input
	Predict(ctx context.Context, modelID string, input map[string]interface{}) (*Prediction, error)

	// ListModels returns the model ids the predictor knows about
	ListModels(ctx context.Context) ([]string, error)
}
