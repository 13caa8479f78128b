package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/advisor/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Ensemble    EnsembleConfig  `toml:"ensemble"`
	Models      ModelsConfig    `toml:"models"`
	Market      MarketConfig    `toml:"market"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Type   string       `toml:"type"` // only "badger" is supported
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory, nothing is written to Path
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir"`         // Log directory (default: ./logs next to the executable)
}

// EnsembleConfig controls agent construction and analysis cycles
type EnsembleConfig struct {
	MaxConcurrency        int    `toml:"max_concurrency"`         // Upper bound on agents running at once (0 = one goroutine per agent)
	AgentTimeout          string `toml:"agent_timeout"`           // Per-agent deadline as duration string (default: "30s")
	CoordinatorModelLimit int    `toml:"coordinator_model_limit"` // Models handed to the coordinator for cross-cutting context (default: 3)
	DefaultMode           string `toml:"default_mode"`            // parallel|sequential|consensus
	DefaultDepth          string `toml:"default_depth"`           // quick|standard|comprehensive
	HistoryLimit          int    `toml:"history_limit"`           // Results kept per ensemble (0 = unlimited)
}

// ModelsConfig selects and configures the external model predictor
type ModelsConfig struct {
	Provider     string  `toml:"provider"`      // "fixture" or "http"
	FixturesFile string  `toml:"fixtures_file"` // TOML or YAML catalog used by the fixture provider
	Endpoint     string  `toml:"endpoint"`      // Base URL used by the http provider
	Timeout      string  `toml:"timeout"`       // Per-invocation timeout (default: "10s")
	RateLimit    float64 `toml:"rate_limit"`    // Invocations per second (0 = unlimited)
	Burst        int     `toml:"burst"`         // Rate limiter burst size
}

// MarketConfig is the default market snapshot served by the static provider
type MarketConfig struct {
	MarketRegime       string             `toml:"market_regime"`
	VolatilityRegime   string             `toml:"volatility_regime"`
	MarketSentiment    string             `toml:"market_sentiment"`
	EconomicIndicators map[string]float64 `toml:"economic_indicators"`
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	Enabled       bool     `toml:"enabled"`
	AllowedEvents []string `toml:"allowed_events"` // Empty list allows all events
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability
// Only user-facing settings should be exposed in advisor.toml
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Ensemble: EnsembleConfig{
			MaxConcurrency:        0,
			AgentTimeout:          "30s",
			CoordinatorModelLimit: 3,
			DefaultMode:           string(models.ModeParallel),
			DefaultDepth:          string(models.DepthStandard),
			HistoryLimit:          100,
		},
		Models: ModelsConfig{
			Provider:     "fixture",
			FixturesFile: "./models.toml",
			Timeout:      "10s",
			RateLimit:    0,
			Burst:        1,
		},
		Market: MarketConfig{
			MarketRegime:     "neutral",
			VolatilityRegime: "normal",
			MarketSentiment:  "neutral",
			EconomicIndicators: map[string]float64{
				"interest_rate": 0.0435,
				"inflation":     0.032,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:       true,
			AllowedEvents: []string{},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: ADVISOR_ENV, fallback: GO_ENV)
	if env := os.Getenv("ADVISOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("ADVISOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ADVISOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("ADVISOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("ADVISOR_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("ADVISOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("ADVISOR_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("ADVISOR_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Ensemble configuration
	if maxConcurrency := os.Getenv("ADVISOR_ENSEMBLE_MAX_CONCURRENCY"); maxConcurrency != "" {
		if mc, err := strconv.Atoi(maxConcurrency); err == nil {
			config.Ensemble.MaxConcurrency = mc
		}
	}
	if agentTimeout := os.Getenv("ADVISOR_ENSEMBLE_AGENT_TIMEOUT"); agentTimeout != "" {
		config.Ensemble.AgentTimeout = agentTimeout
	}
	if limit := os.Getenv("ADVISOR_ENSEMBLE_COORDINATOR_MODEL_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Ensemble.CoordinatorModelLimit = l
		}
	}
	if mode := os.Getenv("ADVISOR_ENSEMBLE_DEFAULT_MODE"); mode != "" {
		config.Ensemble.DefaultMode = mode
	}
	if depth := os.Getenv("ADVISOR_ENSEMBLE_DEFAULT_DEPTH"); depth != "" {
		config.Ensemble.DefaultDepth = depth
	}
	if historyLimit := os.Getenv("ADVISOR_ENSEMBLE_HISTORY_LIMIT"); historyLimit != "" {
		if h, err := strconv.Atoi(historyLimit); err == nil {
			config.Ensemble.HistoryLimit = h
		}
	}

	// Model provider configuration
	if provider := os.Getenv("ADVISOR_MODELS_PROVIDER"); provider != "" {
		config.Models.Provider = provider
	}
	if fixtures := os.Getenv("ADVISOR_MODELS_FIXTURES_FILE"); fixtures != "" {
		config.Models.FixturesFile = fixtures
	}
	if endpoint := os.Getenv("ADVISOR_MODELS_ENDPOINT"); endpoint != "" {
		config.Models.Endpoint = endpoint
	}
	if timeout := os.Getenv("ADVISOR_MODELS_TIMEOUT"); timeout != "" {
		config.Models.Timeout = timeout
	}
	if rateLimit := os.Getenv("ADVISOR_MODELS_RATE_LIMIT"); rateLimit != "" {
		if r, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Models.RateLimit = r
		}
	}

	// Market configuration
	if regime := os.Getenv("ADVISOR_MARKET_REGIME"); regime != "" {
		config.Market.MarketRegime = regime
	}
	if volRegime := os.Getenv("ADVISOR_MARKET_VOLATILITY_REGIME"); volRegime != "" {
		config.Market.VolatilityRegime = volRegime
	}
	if sentiment := os.Getenv("ADVISOR_MARKET_SENTIMENT"); sentiment != "" {
		config.Market.MarketSentiment = sentiment
	}

	if enabled := os.Getenv("ADVISOR_WEBSOCKET_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.WebSocket.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that cannot be corrected silently
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Storage.Type != "" && c.Storage.Type != "badger" {
		return fmt.Errorf("unsupported storage type: %s (only 'badger' is supported)", c.Storage.Type)
	}
	if c.Ensemble.MaxConcurrency < 0 {
		return fmt.Errorf("ensemble max_concurrency must not be negative: %d", c.Ensemble.MaxConcurrency)
	}
	if c.Ensemble.CoordinatorModelLimit < 0 {
		return fmt.Errorf("ensemble coordinator_model_limit must not be negative: %d", c.Ensemble.CoordinatorModelLimit)
	}
	if _, err := parseDuration(c.Ensemble.AgentTimeout); err != nil {
		return fmt.Errorf("ensemble agent_timeout: %w", err)
	}
	if _, err := parseDuration(c.Models.Timeout); err != nil {
		return fmt.Errorf("models timeout: %w", err)
	}
	if mode := models.CollaborationMode(c.Ensemble.DefaultMode); mode != "" && !mode.IsValid() {
		return fmt.Errorf("unknown ensemble default_mode: %s", c.Ensemble.DefaultMode)
	}
	if depth := models.AnalysisDepth(c.Ensemble.DefaultDepth); depth != "" && !depth.IsValid() {
		return fmt.Errorf("unknown ensemble default_depth: %s", c.Ensemble.DefaultDepth)
	}
	switch c.Models.Provider {
	case "fixture", "http":
	default:
		return fmt.Errorf("unknown models provider: %s (expected 'fixture' or 'http')", c.Models.Provider)
	}
	if c.Models.Provider == "http" && c.Models.Endpoint == "" {
		return fmt.Errorf("models endpoint is required for the http provider")
	}
	return nil
}

// AgentTimeoutDuration returns the parsed per-agent deadline, zero when unset
func (c *EnsembleConfig) AgentTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.AgentTimeout)
	return d
}

// TimeoutDuration returns the parsed per-invocation model timeout, zero when unset
func (c *ModelsConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

// MarketContext converts the configured snapshot into the domain type
func (c *MarketConfig) MarketContext() models.MarketContext {
	return models.MarketContext{
		MarketRegime:       c.MarketRegime,
		VolatilityRegime:   c.VolatilityRegime,
		MarketSentiment:    c.MarketSentiment,
		EconomicIndicators: c.EconomicIndicators,
	}.Clone()
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", value)
	}
	return d, nil
}
