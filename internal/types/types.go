package types

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents the urgency class of a pending requirement.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid returns true if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns the scheduling rank: lower sorts earlier (critical=0 .. low=3).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Weight returns the numeric weight used for confidence math (critical=4 .. low=1).
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// Requirement represents a unit of pending work in the backlog.
// The backlog store owns the data; the planner reads and reorders a snapshot.
type Requirement struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	// Dependencies lists IDs of requirements that must complete first
	Dependencies []string  `json:"dependencies,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Validate checks that the requirement has valid field values.
func (r *Requirement) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("requirement id is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("requirement description is required")
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", r.Priority)
	}
	return nil
}

// ResourceBudget defines the ceilings bounding a session's control loop.
// Immutable once the session is created.
type ResourceBudget struct {
	// MaxTokens is the maximum tokens the session may consume
	MaxTokens int64 `json:"max_tokens" yaml:"max_tokens"`
	// MaxCostUSD is the maximum spend in USD
	MaxCostUSD float64 `json:"max_cost_usd" yaml:"max_cost_usd"`
	// MaxDurationMinutes is the maximum wall-clock duration (0 = unlimited)
	MaxDurationMinutes float64 `json:"max_duration_minutes,omitempty" yaml:"max_duration_minutes,omitempty"`
}

// DefaultResourceBudget returns the standard session budget.
func DefaultResourceBudget() ResourceBudget {
	return ResourceBudget{
		MaxTokens:          100000,
		MaxCostUSD:         5.0,
		MaxDurationMinutes: 10,
	}
}

// Validate checks that the budget ceilings are usable.
func (b ResourceBudget) Validate() error {
	if b.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive (got %d)", b.MaxTokens)
	}
	if b.MaxCostUSD <= 0 {
		return fmt.Errorf("max_cost_usd must be positive (got %.2f)", b.MaxCostUSD)
	}
	if b.MaxDurationMinutes < 0 {
		return fmt.Errorf("max_duration_minutes cannot be negative")
	}
	return nil
}

// RiskLevel classifies how dangerous a proposed action is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid returns true if the risk level is recognized.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Value returns a numeric value for threshold comparison (low=0 .. high=2).
func (r RiskLevel) Value() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}
