// Package config loads run configuration: which generator to call and how
// strategies retry and repair.
//
// Configuration is YAML with unknown keys rejected. Keys that are absent keep
// their defaults, and command-line flags override file values.
//
//	model: gemini-2.5-flash
//	api_key_env: GEMINI_API_KEY
//	temperature: 0.2
//	max_tokens: 1024
//	query_sleep: 2s
//	retries: 2
//	backoff: 500ms
//	depth: 1
//	mode: sub
//	scope: record
//	repair_retries: 2
//	repair_backoff: 0s
//	store: runs.db
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/strategy"
)

// DefaultAPIKeyEnv names the environment variable holding the API key.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"

// ErrNoAPIKey is returned when the configured environment variable is unset.
var ErrNoAPIKey = errors.New("api key not set")

// Config is the run configuration.
type Config struct {
	// Generator settings.
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	QuerySleep  time.Duration `yaml:"query_sleep"`

	// Strategy settings.
	Retries       int           `yaml:"retries"`
	Backoff       time.Duration `yaml:"backoff"`
	Depth         int           `yaml:"depth"`
	Mode          string        `yaml:"mode"`
	Scope         string        `yaml:"scope"`
	RepairRetries int           `yaml:"repair_retries"`
	RepairBackoff time.Duration `yaml:"repair_backoff"`

	// Store is the SQLite file exchanges are recorded to. Empty disables
	// recording.
	Store string `yaml:"store,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:         generator.DefaultModel,
		APIKeyEnv:     DefaultAPIKeyEnv,
		Temperature:   generator.DefaultTemperature,
		MaxTokens:     generator.DefaultMaxTokens,
		QuerySleep:    generator.DefaultPacing,
		Retries:       0,
		Backoff:       strategy.DefaultBackoff,
		Depth:         strategy.DefaultDepth,
		Mode:          string(strategy.ModeSub),
		Scope:         string(strategy.ScopeRecord),
		RepairRetries: strategy.DefaultRepairRetries,
		RepairBackoff: 0,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. An empty document yields the
// defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	for name, n := range map[string]int{"retries": c.Retries, "depth": c.Depth, "repair_retries": c.RepairRetries} {
		if n < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, n)
		}
	}
	for name, d := range map[string]time.Duration{"query_sleep": c.QuerySleep, "backoff": c.Backoff, "repair_backoff": c.RepairBackoff} {
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	switch strategy.Mode(c.Mode) {
	case strategy.ModeSub, strategy.ModeFull:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", strategy.ModeSub, strategy.ModeFull, c.Mode)
	}
	switch strategy.Scope(c.Scope) {
	case strategy.ScopeRecord, strategy.ScopeNested:
	default:
		return fmt.Errorf("scope must be %q or %q, got %q", strategy.ScopeRecord, strategy.ScopeNested, c.Scope)
	}
	return nil
}

// APIKey reads the key from the configured environment variable.
func (c Config) APIKey() (string, error) {
	key := os.Getenv(c.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoAPIKey, c.APIKeyEnv)
	}
	return key, nil
}

// GenAIOptions returns the generator options the configuration sets.
func (c Config) GenAIOptions() []generator.GenAIOption {
	return []generator.GenAIOption{
		generator.WithModel(c.Model),
		generator.WithTemperature(c.Temperature),
		generator.WithMaxTokens(c.MaxTokens),
		generator.WithPacing(c.QuerySleep),
	}
}

// StrategyOptions returns the strategy options the configuration sets.
// Base reads retries and backoff; AutoRepair reads the rest.
func (c Config) StrategyOptions() []strategy.Option {
	return []strategy.Option{
		strategy.WithRetries(c.Retries),
		strategy.WithBackoff(c.Backoff),
		strategy.WithDepth(c.Depth),
		strategy.WithMode(strategy.Mode(c.Mode)),
		strategy.WithScope(strategy.Scope(c.Scope)),
		strategy.WithRepairRetries(c.RepairRetries),
		strategy.WithRepairBackoff(c.RepairBackoff),
	}
}
