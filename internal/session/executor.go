// Package session runs execution sessions: it wires the state machine,
// transition guards, decision engine, and planner into a cycle loop, and
// exposes pause/resume/stop controls.
package session

import (
	"context"

	"github.com/steveyegge/autopilot/internal/planner"
)

// TaskResult reports the outcome of one executed task.
type TaskResult struct {
	// Success indicates the task completed cleanly
	Success bool
	// Output is the task's output, kept for the event feed
	Output string
	// InputTokens and OutputTokens feed the resource tracker
	InputTokens  int64
	OutputTokens int64
	// Error describes the failure when Success is false
	Error string
}

// TaskExecutor performs planned tasks. Implementations drive coding agents,
// shell commands, or anything else; the orchestrator only sees results.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, task planner.Task) (*TaskResult, error)
}

// ExecutorFunc adapts a function to the TaskExecutor interface.
type ExecutorFunc func(ctx context.Context, task planner.Task) (*TaskResult, error)

// ExecuteTask implements TaskExecutor.
func (f ExecutorFunc) ExecuteTask(ctx context.Context, task planner.Task) (*TaskResult, error) {
	return f(ctx, task)
}
