// Package cost tracks per-session resource consumption against a budget.
package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/steveyegge/autopilot/internal/guards"
	"github.com/steveyegge/autopilot/internal/types"
)

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates normal operation - under budget limits
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates approaching budget limits (>80% by default)
	BudgetWarning
	// BudgetExceeded indicates budget limits have been exceeded
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// DefaultAlertThreshold is the budget fraction at which warnings start.
const DefaultAlertThreshold = 0.8

// Config configures a session resource tracker.
type Config struct {
	// Budget is the session resource budget being enforced
	Budget types.ResourceBudget `json:"budget"`

	// AlertThreshold is the fraction of any budget dimension at which
	// the status moves to WARNING (default 0.8)
	AlertThreshold float64 `json:"alert_threshold"`

	// InputTokenCost is the cost per million input tokens in USD
	InputTokenCost float64 `json:"input_token_cost"`

	// OutputTokenCost is the cost per million output tokens in USD
	OutputTokenCost float64 `json:"output_token_cost"`

	// PersistStatePath is where usage state is saved for restart recovery
	// (empty disables persistence)
	PersistStatePath string `json:"persist_state_path,omitempty"`
}

// DefaultConfig returns a tracker configuration with the default budget
// and current Sonnet-class pricing.
func DefaultConfig() Config {
	return Config{
		Budget:          types.DefaultResourceBudget(),
		AlertThreshold:  DefaultAlertThreshold,
		InputTokenCost:  3.0,
		OutputTokenCost: 15.0,
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("alert_threshold must be in (0, 1], got %v", c.AlertThreshold)
	}
	if c.InputTokenCost < 0 || c.OutputTokenCost < 0 {
		return fmt.Errorf("token costs must be non-negative")
	}
	return nil
}

// usageState is the persisted usage tracking state.
type usageState struct {
	TokensUsed  int64     `json:"tokens_used"`
	CostUsed    float64   `json:"cost_used"`
	StartTime   time.Time `json:"start_time"`
	LastUpdated time.Time `json:"last_updated"`
}

// Tracker accumulates session resource usage and enforces the budget.
type Tracker struct {
	config Config
	state  usageState
	mu     sync.RWMutex

	// Alert throttling
	lastWarningTime  time.Time
	lastExceededTime time.Time

	now func() time.Time
}

// NewTracker creates a session resource tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.AlertThreshold == 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.Budget == (types.ResourceBudget{}) {
		cfg.Budget = types.DefaultResourceBudget()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	t := &Tracker{
		config: cfg,
		state: usageState{
			StartTime:   time.Now(),
			LastUpdated: time.Now(),
		},
		now: time.Now,
	}

	if cfg.PersistStatePath != "" {
		if err := t.loadState(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load usage state from %s: %v (starting fresh)\n",
				cfg.PersistStatePath, err)
		}
	}

	return t, nil
}

// RecordUsage records token usage and returns the budget status after the
// update.
func (t *Tracker) RecordUsage(inputTokens, outputTokens int64) BudgetStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.TokensUsed += inputTokens + outputTokens
	t.state.CostUsed += t.calculateCost(inputTokens, outputTokens)
	t.state.LastUpdated = t.now()

	if err := t.persistState(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist usage state: %v\n", err)
	}

	status := t.statusLocked()
	t.emitAlertsIfNeeded(status)
	return status
}

// Status returns the current budget status without recording usage.
func (t *Tracker) Status() BudgetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusLocked()
}

// CanProceed returns whether another operation fits within the budget,
// with the exhausted dimension named when it does not. A zero ceiling is
// unlimited and never exhausts.
func (t *Tracker) CanProceed() (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.config.Budget.MaxTokens > 0 && t.state.TokensUsed >= t.config.Budget.MaxTokens {
		return false, fmt.Sprintf("token budget exhausted (%d/%d tokens used)",
			t.state.TokensUsed, t.config.Budget.MaxTokens)
	}
	if t.config.Budget.MaxCostUSD > 0 && t.state.CostUsed >= t.config.Budget.MaxCostUSD {
		return false, fmt.Sprintf("cost budget exhausted ($%.2f/$%.2f used)",
			t.state.CostUsed, t.config.Budget.MaxCostUSD)
	}
	if t.config.Budget.MaxDurationMinutes > 0 && t.elapsedMinutesLocked() >= t.config.Budget.MaxDurationMinutes {
		return false, fmt.Sprintf("duration budget exhausted (%.1f/%.1f minutes elapsed)",
			t.elapsedMinutesLocked(), t.config.Budget.MaxDurationMinutes)
	}
	return true, ""
}

// Usage returns a snapshot suitable for transition guard evaluation.
func (t *Tracker) Usage() *guards.ResourceUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &guards.ResourceUsage{
		TokensUsed:      t.state.TokensUsed,
		CostUSD:         t.state.CostUsed,
		DurationMinutes: t.elapsedMinutesLocked(),
	}
}

// Remaining returns the unspent token and cost budget. Either value may be
// negative once the budget is blown.
func (t *Tracker) Remaining() (tokens int64, costUSD float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config.Budget.MaxTokens - t.state.TokensUsed,
		t.config.Budget.MaxCostUSD - t.state.CostUsed
}

// Stats contains a usage snapshot for status reporting.
type Stats struct {
	Status          BudgetStatus         `json:"status"`
	TokensUsed      int64                `json:"tokens_used"`
	CostUsed        float64              `json:"cost_used"`
	DurationMinutes float64              `json:"duration_minutes"`
	Budget          types.ResourceBudget `json:"budget"`
	StartTime       time.Time            `json:"start_time"`
	LastUpdated     time.Time            `json:"last_updated"`
}

// GetStats returns current usage statistics.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Stats{
		Status:          t.statusLocked(),
		TokensUsed:      t.state.TokensUsed,
		CostUsed:        t.state.CostUsed,
		DurationMinutes: t.elapsedMinutesLocked(),
		Budget:          t.config.Budget,
		StartTime:       t.state.StartTime,
		LastUpdated:     t.state.LastUpdated,
	}
}

// statusLocked returns the current budget status (must be called with lock
// held). Zero ceilings are unlimited and contribute nothing to the status.
func (t *Tracker) statusLocked() BudgetStatus {
	var usedFraction float64
	if max := t.config.Budget.MaxTokens; max > 0 {
		if t.state.TokensUsed >= max {
			return BudgetExceeded
		}
		usedFraction = float64(t.state.TokensUsed) / float64(max)
	}
	if max := t.config.Budget.MaxCostUSD; max > 0 {
		if t.state.CostUsed >= max {
			return BudgetExceeded
		}
		if p := t.state.CostUsed / max; p > usedFraction {
			usedFraction = p
		}
	}
	if max := t.config.Budget.MaxDurationMinutes; max > 0 {
		if t.elapsedMinutesLocked() >= max {
			return BudgetExceeded
		}
		if p := t.elapsedMinutesLocked() / max; p > usedFraction {
			usedFraction = p
		}
	}

	if usedFraction >= t.config.AlertThreshold {
		return BudgetWarning
	}
	return BudgetHealthy
}

func (t *Tracker) elapsedMinutesLocked() float64 {
	return t.now().Sub(t.state.StartTime).Minutes()
}

// calculateCost calculates the cost in USD for given token usage
func (t *Tracker) calculateCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) * t.config.InputTokenCost / 1_000_000
	outputCost := float64(outputTokens) * t.config.OutputTokenCost / 1_000_000
	return inputCost + outputCost
}

// persistState saves usage state to disk. Must be called with lock held.
func (t *Tracker) persistState() error {
	if t.config.PersistStatePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(t.config.PersistStatePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// loadState loads usage state from disk for restart recovery.
func (t *Tracker) loadState() error {
	data, err := os.ReadFile(t.config.PersistStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state usageState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.StartTime.IsZero() {
		state.StartTime = time.Now()
	}

	t.state = state
	return nil
}

// emitAlertsIfNeeded prints budget alerts, throttled to one per 5 minutes.
// Must be called with lock held.
func (t *Tracker) emitAlertsIfNeeded(status BudgetStatus) {
	now := t.now()

	switch status {
	case BudgetWarning:
		if now.Sub(t.lastWarningTime) > 5*time.Minute {
			tokenPercent := float64(t.state.TokensUsed) / float64(t.config.Budget.MaxTokens) * 100
			costPercent := t.state.CostUsed / t.config.Budget.MaxCostUSD * 100
			fmt.Printf("⚠️  Resource budget warning: %.0f%% tokens used (%.0f%% cost)\n",
				tokenPercent, costPercent)
			t.lastWarningTime = now
		}

	case BudgetExceeded:
		if now.Sub(t.lastExceededTime) > 5*time.Minute {
			fmt.Printf("🚨 Resource budget EXCEEDED: session will be suspended\n")
			fmt.Printf("   Usage: %d/%d tokens ($%.2f/$%.2f)\n",
				t.state.TokensUsed, t.config.Budget.MaxTokens,
				t.state.CostUsed, t.config.Budget.MaxCostUSD)
			t.lastExceededTime = now
		}
	}
}
