package predictors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/interfaces"
)

const (
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 10 * time.Second
)

// HTTPPredictor calls a remote model platform over HTTP
type HTTPPredictor struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// HTTPOption configures the HTTPPredictor
type HTTPOption func(*HTTPPredictor)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPPredictor) {
		p.httpClient = client
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) HTTPOption {
	return func(p *HTTPPredictor) {
		p.logger = logger
	}
}

// WithRateLimit limits outgoing requests; requestsPerSecond <= 0 disables limiting
func WithRateLimit(requestsPerSecond float64, burst int) HTTPOption {
	return func(p *HTTPPredictor) {
		if requestsPerSecond <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// NewHTTPPredictor creates a predictor for the platform at endpoint
func NewHTTPPredictor(endpoint string, opts ...HTTPOption) (*HTTPPredictor, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("model endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid model endpoint: %w", err)
	}

	p := &HTTPPredictor{
		endpoint:   endpoint,
		httpClient: httpclient.NewDefaultHTTPClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type predictRequest struct {
	ModelID string                 `json:"model_id"`
	Input   map[string]interface{} `json:"input"`
}

type listModelsResponse struct {
	Models []string `json:"models"`
}

// Predict posts the input to {endpoint}/predict
func (p *HTTPPredictor) Predict(ctx context.Context, modelID string, input map[string]interface{}) (*interfaces.Prediction, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if p.logger != nil {
		p.logger.Debug().Str("model_id", modelID).Str("endpoint", p.endpoint).Msg("Model prediction request")
	}

	var prediction interfaces.Prediction
	if err := httpclient.DoJSON(ctx, p.httpClient, http.MethodPost, p.endpoint+"/predict", predictRequest{
		ModelID: modelID,
		Input:   input,
	}, &prediction); err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}
	return &prediction, nil
}

// ListModels fetches the model catalog from {endpoint}/models
func (p *HTTPPredictor) ListModels(ctx context.Context) ([]string, error) {
	var resp listModelsResponse
	if err := httpclient.DoJSON(ctx, p.httpClient, http.MethodGet, p.endpoint+"/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}
