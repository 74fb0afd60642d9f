// Package guards provides transition predicates that can veto a state
// machine transition based on resource usage, error rate, progress, or
// oscillation, plus combinators to compose them.
package guards

import (
	"context"
	"fmt"
	"os"

	"github.com/steveyegge/autopilot/internal/state"
	"github.com/steveyegge/autopilot/internal/types"
)

// ResourceUsage is the resource portion of a transition context.
type ResourceUsage struct {
	TokensUsed      int64   `json:"tokens_used"`
	CostUSD         float64 `json:"cost_usd"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// TaskProgress is the progress portion of a transition context.
type TaskProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
}

// TransitionContext is supplied per transition attempt and consumed once by
// guards. It is never persisted.
type TransitionContext struct {
	ResourceUsage *ResourceUsage
	TaskProgress  *TaskProgress
	ErrorCount    int
	LastError     string
}

// Guard is a predicate over a proposed transition. Guards may perform I/O;
// combinators evaluate them sequentially so side effects stay ordered.
type Guard interface {
	Check(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error)
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error)

// Check implements Guard.
func (f GuardFunc) Check(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
	return f(ctx, from, to, tc)
}

// Resource returns a guard that vetoes when any usage figure exceeds the
// corresponding budget ceiling. Permissive when no usage context is
// supplied.
func Resource(limits types.ResourceBudget) Guard {
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		if tc == nil || tc.ResourceUsage == nil {
			return true, nil
		}
		u := tc.ResourceUsage
		if limits.MaxTokens > 0 && u.TokensUsed > limits.MaxTokens {
			return false, nil
		}
		if limits.MaxCostUSD > 0 && u.CostUSD > limits.MaxCostUSD {
			return false, nil
		}
		if limits.MaxDurationMinutes > 0 && u.DurationMinutes > limits.MaxDurationMinutes {
			return false, nil
		}
		return true, nil
	})
}

// Errors returns a guard that vetoes once the context's error count reaches
// maxErrors.
func Errors(maxErrors int) Guard {
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		if tc == nil {
			return true, nil
		}
		return tc.ErrorCount < maxErrors, nil
	})
}

// DefaultMinProgressRatio is the completion ratio below which the progress
// guard vetoes.
const DefaultMinProgressRatio = 0.1

// Progress returns a guard that vetoes when fewer than minRatio of tasks
// have completed. Permissive when no progress context is supplied or total
// is zero.
func Progress(minRatio float64) Guard {
	if minRatio <= 0 {
		minRatio = DefaultMinProgressRatio
	}
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		if tc == nil || tc.TaskProgress == nil || tc.TaskProgress.Total <= 0 {
			return true, nil
		}
		ratio := float64(tc.TaskProgress.Completed) / float64(tc.TaskProgress.Total)
		return ratio >= minRatio, nil
	})
}

// And returns a guard that passes only when every constituent guard passes.
// Guards are evaluated strictly in order and evaluation short-circuits on
// the first veto, so a stateful guard placed later never records a
// transition that an earlier guard rejected.
func And(guards ...Guard) Guard {
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		for _, g := range guards {
			ok, err := g.Check(ctx, from, to, tc)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	})
}

// Or returns a guard that passes when any constituent guard passes.
// Evaluation is sequential and short-circuits on the first pass.
func Or(guards ...Guard) Guard {
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		for _, g := range guards {
			ok, err := g.Check(ctx, from, to, tc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts a guard.
func Not(g Guard) Guard {
	return GuardFunc(func(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
		ok, err := g.Check(ctx, from, to, tc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

// Evaluate runs a guard and recovers any evaluation error or panic to a
// veto, so one bad evaluation cannot crash a session loop. The failure is
// logged, not propagated.
func Evaluate(ctx context.Context, g Guard, from, to state.ExecutionState, tc *TransitionContext) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "guards: evaluation panicked for %s -> %s: %v (treating as veto)\n", from, to, r)
			allowed = false
		}
	}()

	ok, err := g.Check(ctx, from, to, tc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guards: evaluation failed for %s -> %s: %v (treating as veto)\n", from, to, err)
		return false
	}
	return ok
}
