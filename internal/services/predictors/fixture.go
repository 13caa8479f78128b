package predictors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/advisor/internal/interfaces"
)

// FixtureEntry is the canned behaviour of one model in a fixture catalog
type FixtureEntry struct {
	Success    *bool                  `toml:"success" yaml:"success"` // defaults to true
	Prediction map[string]interface{} `toml:"prediction" yaml:"prediction"`
	Error      string                 `toml:"error" yaml:"error"`
	Delay      string                 `toml:"delay" yaml:"delay"` // simulated latency, e.g. "250ms"
}

type fixtureCatalog struct {
	Models map[string]FixtureEntry `toml:"models" yaml:"models"`
}

type fixture struct {
	prediction interfaces.Prediction
	delay      time.Duration
}

// FixturePredictor serves predictions from a static TOML or YAML catalog. It stands in
// for the model platform in development and tests.
type FixturePredictor struct {
	mu     sync.RWMutex
	models map[string]fixture
	logger arbor.ILogger
}

// NewFixturePredictor loads a catalog from path. A missing file yields an empty catalog.
func NewFixturePredictor(path string, logger arbor.ILogger) (*FixturePredictor, error) {
	p := &FixturePredictor{models: make(map[string]fixture), logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("Model fixtures file not found, no models available")
			return p, nil
		}
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}

	if err := p.Load(data, filepath.Ext(path)); err != nil {
		return nil, fmt.Errorf("failed to load fixtures from %s: %w", path, err)
	}

	logger.Info().Str("path", path).Int("models", len(p.models)).Msg("Model fixtures loaded")
	return p, nil
}

// Load replaces the catalog with the contents of data. ext selects the format:
// ".yaml"/".yml" for YAML, anything else for TOML.
func (p *FixturePredictor) Load(data []byte, ext string) error {
	var catalog fixtureCatalog
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &catalog); err != nil {
			return fmt.Errorf("invalid TOML: %w", err)
		}
	}

	models := make(map[string]fixture, len(catalog.Models))
	for id, entry := range catalog.Models {
		f, err := entry.toFixture()
		if err != nil {
			return fmt.Errorf("model %s: %w", id, err)
		}
		models[id] = f
	}

	p.mu.Lock()
	p.models = models
	p.mu.Unlock()
	return nil
}

// Set registers or replaces a single model fixture
func (p *FixturePredictor) Set(modelID string, entry FixtureEntry) error {
	f, err := entry.toFixture()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.models[modelID] = f
	p.mu.Unlock()
	return nil
}

func (e FixtureEntry) toFixture() (fixture, error) {
	success := true
	if e.Success != nil {
		success = *e.Success
	}
	var delay time.Duration
	if e.Delay != "" {
		d, err := time.ParseDuration(e.Delay)
		if err != nil {
			return fixture{}, fmt.Errorf("invalid delay %q: %w", e.Delay, err)
		}
		delay = d
	}
	return fixture{
		prediction: interfaces.Prediction{
			Success:    success,
			Prediction: e.Prediction,
			Error:      e.Error,
		},
		delay: delay,
	}, nil
}

// Predict returns the canned prediction of a model
func (p *FixturePredictor) Predict(ctx context.Context, modelID string, input map[string]interface{}) (*interfaces.Prediction, error) {
	p.mu.RLock()
	f, ok := p.models[modelID]
	p.mu.RUnlock()

	if !ok {
		return &interfaces.Prediction{Success: false, Error: fmt.Sprintf("model not found: %s", modelID)}, nil
	}

	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	prediction := f.prediction
	if prediction.Prediction != nil {
		payload := make(map[string]interface{}, len(prediction.Prediction))
		for k, v := range prediction.Prediction {
			payload[k] = v
		}
		prediction.Prediction = payload
	}
	return &prediction, nil
}

// ListModels returns the catalog model ids in sorted order
func (p *FixturePredictor) ListModels(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.models))
	for id := range p.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
