// Package planner converts a backlog of pending requirements plus execution
// telemetry into a concrete batch of next tasks, a continue/stop verdict,
// and a confidence score.
package planner

import "github.com/steveyegge/autopilot/internal/types"

// CompletionCriteria is the checkpoint snapshot fed to completion analysis.
type CompletionCriteria struct {
	RequirementsCompleted bool `json:"requirements_completed"`
	TestsPassing          bool `json:"tests_passing"`
	VerificationPassed    bool `json:"verification_passed"`
	NoBlockingIssues      bool `json:"no_blocking_issues"`
	ResourceExhausted     bool `json:"resource_exhausted"`
}

// CompletionAnalysis is the verdict from a completion checkpoint. Resource
// exhaustion and "all work complete" are distinguishable so callers can
// render the correct end-of-session message.
type CompletionAnalysis struct {
	AllComplete bool     `json:"all_complete"`
	CanContinue bool     `json:"can_continue"`
	ShouldPause bool     `json:"should_pause"`
	Reasons     []string `json:"reasons"`
}

// ExecutionContext carries the telemetry the planner needs for a cycle.
type ExecutionContext struct {
	// CurrentIteration is the zero-based count of completed planning cycles
	CurrentIteration int `json:"current_iteration"`
	// TokensRemaining is the unspent token budget
	TokensRemaining int64 `json:"tokens_remaining"`
	// CostRemaining is the unspent cost budget in USD
	CostRemaining float64 `json:"cost_remaining"`
	// RecentErrors holds recent error messages, newest last
	RecentErrors []string `json:"recent_errors,omitempty"`
	// RecentFailures counts recent task failures
	RecentFailures int `json:"recent_failures"`
}

// Task is one scheduled unit of work in a plan.
type Task struct {
	// RequirementID links back to the backlog entry the task was planned
	// from; empty for synthesized fix tasks
	RequirementID string         `json:"requirement_id,omitempty"`
	Subject       string         `json:"subject"`
	Description   string         `json:"description"`
	Priority      types.Priority `json:"priority"`
}

// Plan is the planner's output for one cycle. Plans are value objects
// recomputed fresh on every planning call and never mutated in place.
type Plan struct {
	ShouldContinue  bool    `json:"should_continue"`
	Reason          string  `json:"reason"`
	NextTasks       []Task  `json:"next_tasks"`
	EstimatedCycles int     `json:"estimated_cycles"`
	Confidence      float64 `json:"confidence"`
}

// FailureContext describes a test or verification failure being replanned.
type FailureContext struct {
	// Subject identifies what failed (test name, verification stage)
	Subject string `json:"subject"`
	// Detail is the failure output or message
	Detail string `json:"detail"`
	// FailureCount is how many times this failure has now occurred
	FailureCount int `json:"failure_count"`
}
