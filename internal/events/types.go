package events

import (
	"time"
)

// EventType represents the type of event that occurred during session execution.
type EventType string

const (
	// Session lifecycle events
	// EventTypeSessionStarted indicates a session began execution
	EventTypeSessionStarted EventType = "session_started"
	// EventTypeSessionPaused indicates a session was paused
	EventTypeSessionPaused EventType = "session_paused"
	// EventTypeSessionResumed indicates a paused session resumed execution
	EventTypeSessionResumed EventType = "session_resumed"
	// EventTypeSessionCompleted indicates a session finished all work
	EventTypeSessionCompleted EventType = "session_completed"
	// EventTypeSessionFailed indicates a session terminated with an error
	EventTypeSessionFailed EventType = "session_failed"
	// EventTypeSessionStopped indicates a session was stopped by request
	EventTypeSessionStopped EventType = "session_stopped"

	// State machine events
	// EventTypeStateChanged indicates an execution state transition occurred
	EventTypeStateChanged EventType = "state_changed"
	// EventTypeInvalidTransition indicates a transition was rejected by the state graph
	EventTypeInvalidTransition EventType = "invalid_transition"
	// EventTypeTransitionVetoed indicates a guard vetoed an otherwise legal transition
	EventTypeTransitionVetoed EventType = "transition_vetoed"
	// EventTypeStateLoopDetected indicates the same state recurred suspiciously often
	EventTypeStateLoopDetected EventType = "state_loop_detected"

	// Decision events
	// EventTypeDecisionMade indicates the decision engine scored an action
	EventTypeDecisionMade EventType = "decision_made"
	// EventTypeDecisionCaution indicates a decision landed in the caution band
	EventTypeDecisionCaution EventType = "decision_caution"
	// EventTypeDecisionRejected indicates a decision was rejected outright
	EventTypeDecisionRejected EventType = "decision_rejected"

	// Planning events
	// EventTypePlanCreated indicates the planner produced a new batch of tasks
	EventTypePlanCreated EventType = "plan_created"
	// EventTypeTaskStarted indicates a planned task began execution
	EventTypeTaskStarted EventType = "task_started"
	// EventTypeTaskCompleted indicates a planned task finished
	EventTypeTaskCompleted EventType = "task_completed"
	// EventTypeTaskFailed indicates a planned task failed
	EventTypeTaskFailed EventType = "task_failed"
	// EventTypeReplanAfterFailure indicates the planner replanned around a failure
	EventTypeReplanAfterFailure EventType = "replan_after_failure"

	// Resource budgeting events
	// EventTypeResourceUsage indicates a periodic resource usage report
	EventTypeResourceUsage EventType = "resource_usage"
	// EventTypeBudgetAlert indicates budget warning or exceeded alert
	EventTypeBudgetAlert EventType = "budget_alert"

	// EventTypeError indicates an error occurred
	EventTypeError EventType = "error"
	// EventTypeProgress indicates a generic progress update
	EventTypeProgress EventType = "progress"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events requiring immediate attention
	SeverityCritical EventSeverity = "critical"
)

// SessionEvent represents an event that occurred during session execution.
// Events are stored in the session event feed for monitoring and review.
type SessionEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// SessionID is the session this event belongs to
	SessionID string `json:"session_id"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// StateChangedData contains structured data for state transition events.
type StateChangedData struct {
	// FromState is the state being left
	FromState string `json:"from_state"`
	// ToState is the state being entered
	ToState string `json:"to_state"`
	// Reason is why the transition happened
	Reason string `json:"reason,omitempty"`
	// Forced indicates the transition bypassed graph validation
	Forced bool `json:"forced,omitempty"`
}

// DecisionMadeData contains structured data for decision events.
type DecisionMadeData struct {
	// Action is the decision outcome: "approve", "caution", "reject"
	Action string `json:"action"`
	// Score is the composite score on the 0-10 scale
	Score float64 `json:"score"`
	// Approved indicates whether execution may proceed
	Approved bool `json:"approved"`
	// Reasoning is the engine's explanation for the decision
	Reasoning string `json:"reasoning"`
}

// PlanCreatedData contains structured data for planning events.
type PlanCreatedData struct {
	// TaskCount is the number of tasks in the new plan
	TaskCount int `json:"task_count"`
	// EstimatedCycles is the planner's cycle estimate for the batch
	EstimatedCycles int `json:"estimated_cycles"`
	// Confidence is the planner's confidence score (0.0 to 1.0)
	Confidence float64 `json:"confidence"`
	// Iteration is the planning iteration the batch belongs to
	Iteration int `json:"iteration"`
}

// ResourceUsageData contains structured data for resource usage events.
type ResourceUsageData struct {
	// TokensUsed is the cumulative token count for the session
	TokensUsed int64 `json:"tokens_used"`
	// CostUSD is the cumulative spend for the session
	CostUSD float64 `json:"cost_usd"`
	// DurationMinutes is the elapsed session wall time
	DurationMinutes float64 `json:"duration_minutes"`
}

// BudgetAlertData contains structured data for budget alert events.
type BudgetAlertData struct {
	// Dimension is which budget dimension triggered: "tokens", "cost", "duration"
	Dimension string `json:"dimension"`
	// Used is the consumed amount on that dimension
	Used float64 `json:"used"`
	// Limit is the configured budget on that dimension
	Limit float64 `json:"limit"`
	// Exceeded indicates the limit has been crossed (not just approached)
	Exceeded bool `json:"exceeded"`
}

// TaskResultData contains structured data for task completion and failure events.
type TaskResultData struct {
	// Subject identifies the task
	Subject string `json:"subject"`
	// Priority is the task priority: "critical", "high", "medium", "low"
	Priority string `json:"priority"`
	// Success indicates whether the task completed successfully
	Success bool `json:"success"`
	// Error contains the failure message when Success is false
	Error string `json:"error,omitempty"`
	// DurationMs is how long the task ran in milliseconds
	DurationMs int64 `json:"duration_ms"`
}
