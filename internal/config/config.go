// Package config loads session configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/autopilot/internal/decision"
	"github.com/steveyegge/autopilot/internal/types"
)

// SessionConfig represents a session configuration loaded from YAML.
type SessionConfig struct {
	// AutonomyLevel controls how aggressively the session runs
	AutonomyLevel string `yaml:"autonomy_level"`

	// Goal is the session objective shown in status output
	Goal string `yaml:"goal,omitempty"`

	// ResourceBudget bounds the session
	ResourceBudget BudgetYAMLConfig `yaml:"resource_budget"`

	// DecisionThreshold overrides the level's approval threshold when > 0
	DecisionThreshold float64 `yaml:"decision_threshold,omitempty"`

	// WeightsPreset selects a named weighting scheme: "uniform" or
	// "sustainability". Explicit Weights values override the preset.
	WeightsPreset string `yaml:"weights_preset,omitempty"`

	// Weights overrides the scoring dimension weights
	Weights WeightsYAMLConfig `yaml:"weights,omitempty"`

	// Unattended disables interactive prompts entirely
	Unattended bool `yaml:"unattended"`

	// DatabasePath is the SQLite database location
	DatabasePath string `yaml:"database_path,omitempty"`

	// SocketPath is the control socket location
	SocketPath string `yaml:"socket_path,omitempty"`
}

// BudgetYAMLConfig represents a resource budget in the YAML config file.
type BudgetYAMLConfig struct {
	MaxTokens          int64   `yaml:"max_tokens,omitempty"`
	MaxCostUSD         float64 `yaml:"max_cost_usd,omitempty"`
	MaxDurationMinutes float64 `yaml:"max_duration_minutes,omitempty"`
}

// WeightsYAMLConfig represents scoring weights in the YAML config file.
// Zero values fall back to the engine defaults.
type WeightsYAMLConfig struct {
	Convergence float64 `yaml:"convergence,omitempty"`
	Leverage    float64 `yaml:"leverage,omitempty"`
	Optionality float64 `yaml:"optionality,omitempty"`
	Surplus     float64 `yaml:"surplus,omitempty"`
	Evolution   float64 `yaml:"evolution,omitempty"`
}

// DefaultSessionConfig returns a session config with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	budget := types.DefaultResourceBudget()
	return &SessionConfig{
		AutonomyLevel: string(types.AutonomyCrazy),
		ResourceBudget: BudgetYAMLConfig{
			MaxTokens:          budget.MaxTokens,
			MaxCostUSD:         budget.MaxCostUSD,
			MaxDurationMinutes: budget.MaxDurationMinutes,
		},
	}
}

// Load loads session configuration from a YAML file, then applies
// AUTOPILOT_* environment variable overrides. A missing file is not an
// error: defaults plus env overrides are returned.
func Load(path string) (*SessionConfig, error) {
	config := DefaultSessionConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies AUTOPILOT_* environment variables on top of the
// file-based configuration.
func (c *SessionConfig) applyEnvOverrides() {
	c.AutonomyLevel = getEnvString("AUTOPILOT_AUTONOMY_LEVEL", c.AutonomyLevel)
	c.ResourceBudget.MaxTokens = getEnvInt64("AUTOPILOT_MAX_TOKENS", c.ResourceBudget.MaxTokens)
	c.ResourceBudget.MaxCostUSD = getEnvFloat("AUTOPILOT_MAX_COST_USD", c.ResourceBudget.MaxCostUSD)
	c.ResourceBudget.MaxDurationMinutes = getEnvFloat("AUTOPILOT_MAX_DURATION_MINUTES", c.ResourceBudget.MaxDurationMinutes)
	c.DecisionThreshold = getEnvFloat("AUTOPILOT_DECISION_THRESHOLD", c.DecisionThreshold)
	c.WeightsPreset = getEnvString("AUTOPILOT_WEIGHTS_PRESET", c.WeightsPreset)
	c.Unattended = getEnvBool("AUTOPILOT_UNATTENDED", c.Unattended)
	c.DatabasePath = getEnvString("AUTOPILOT_DB_PATH", c.DatabasePath)
	c.SocketPath = getEnvString("AUTOPILOT_SOCKET_PATH", c.SocketPath)
}

// Validate checks the configuration for invalid values.
func (c *SessionConfig) Validate() error {
	if _, err := types.ParseAutonomyLevel(c.AutonomyLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Budget().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DecisionThreshold < 0 || c.DecisionThreshold > 10 {
		return fmt.Errorf("invalid config: decision_threshold must be in [0, 10], got %v", c.DecisionThreshold)
	}
	switch c.WeightsPreset {
	case "", "uniform", "sustainability":
	default:
		return fmt.Errorf("invalid config: unknown weights_preset %q", c.WeightsPreset)
	}
	return nil
}

// Level returns the parsed autonomy level.
func (c *SessionConfig) Level() types.AutonomyLevel {
	level, err := types.ParseAutonomyLevel(c.AutonomyLevel)
	if err != nil {
		return types.AutonomyCrazy
	}
	return level
}

// Budget returns the configured resource budget with defaults filled in.
func (c *SessionConfig) Budget() types.ResourceBudget {
	budget := types.DefaultResourceBudget()
	if c.ResourceBudget.MaxTokens > 0 {
		budget.MaxTokens = c.ResourceBudget.MaxTokens
	}
	if c.ResourceBudget.MaxCostUSD > 0 {
		budget.MaxCostUSD = c.ResourceBudget.MaxCostUSD
	}
	if c.ResourceBudget.MaxDurationMinutes > 0 {
		budget.MaxDurationMinutes = c.ResourceBudget.MaxDurationMinutes
	}
	return budget
}

// DecisionWeights returns the configured scoring weights. The preset sets
// the baseline, then any explicit per-dimension value overrides it. With no
// preset and no explicit values the engine's defaults apply.
func (c *SessionConfig) DecisionWeights() decision.Weights {
	var weights decision.Weights
	switch c.WeightsPreset {
	case "uniform":
		weights = decision.DefaultWeights()
	case "sustainability":
		weights = decision.SustainabilityWeights()
	}

	if c.Weights.Convergence > 0 {
		weights.Convergence = c.Weights.Convergence
	}
	if c.Weights.Leverage > 0 {
		weights.Leverage = c.Weights.Leverage
	}
	if c.Weights.Optionality > 0 {
		weights.Optionality = c.Weights.Optionality
	}
	if c.Weights.Surplus > 0 {
		weights.Surplus = c.Weights.Surplus
	}
	if c.Weights.Evolution > 0 {
		weights.Evolution = c.Weights.Evolution
	}
	return weights
}

// getEnvString retrieves a string from an environment variable, or returns the default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 from an environment variable, or returns the default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float from an environment variable, or returns the default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a bool from an environment variable, or returns the default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
