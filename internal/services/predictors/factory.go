package predictors

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/interfaces"
)

// NewPredictor creates the model predictor selected by config
func NewPredictor(config *common.ModelsConfig, logger arbor.ILogger) (interfaces.ModelPredictor, error) {
	switch config.Provider {
	case "", "fixture":
		p, err := NewFixturePredictor(config.FixturesFile, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "http":
		p, err := NewHTTPPredictor(config.Endpoint,
			WithHTTPClient(httpclient.NewDefaultHTTPClient(config.TimeoutDuration())),
			WithRateLimit(config.RateLimit, config.Burst),
			WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s (expected 'fixture' or 'http')", config.Provider)
	}
}
