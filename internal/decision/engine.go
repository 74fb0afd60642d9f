package decision

import (
	"fmt"

	"github.com/steveyegge/autopilot/internal/types"
)

// Action is the verdict category for an evaluated decision.
type Action string

const (
	// ActionApprove means the action may proceed
	ActionApprove Action = "approve"
	// ActionCaution means the action may proceed only under a permissive
	// autonomy level; otherwise it is a pause signal
	ActionCaution Action = "caution"
	// ActionReject means the action must not proceed
	ActionReject Action = "reject"
)

// Result is the outcome of evaluating one proposed action.
type Result struct {
	Action Action `json:"action"`
	// Approved is true for approve, and for caution when the autonomy level
	// does not pause on important decisions
	Approved  bool   `json:"approved"`
	Score     Score  `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Context carries caller-tracked session telemetry into an evaluation. The
// engine itself holds no session state.
type Context struct {
	// RecentErrors is how many errors the session saw recently
	RecentErrors int
	// RecentDecisions is the trailing window of verdicts, newest last
	RecentDecisions []Action
}

// Config holds the engine's static configuration, fixed for the session.
type Config struct {
	// AutonomyLevel selects the default thresholds and the caution policy
	AutonomyLevel types.AutonomyLevel
	// DecisionThreshold is the approval threshold; 0 selects the level's
	// default. The caution threshold is always approval minus 2.
	DecisionThreshold float64
	// Weights for the CLOSE total (zero value selects uniform weights)
	Weights Weights
}

// Engine evaluates proposed actions with the CLOSE rubric. One engine is
// created per session and holds only static configuration, so evaluation
// is deterministic given identical inputs.
type Engine struct {
	level             types.AutonomyLevel
	approvalThreshold float64
	cautionThreshold  float64
	weights           Weights
}

// NewEngine creates a decision engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	level := cfg.AutonomyLevel
	if level == "" {
		level = types.AutonomyCrazy
	}
	if !level.IsValid() {
		return nil, fmt.Errorf("invalid autonomy level: %q", level)
	}

	approval := cfg.DecisionThreshold
	if approval == 0 {
		approval, _ = level.DefaultThresholds()
	}
	if approval < 0 || approval > 10 {
		return nil, fmt.Errorf("decision threshold must be in [0,10] (got %.1f)", approval)
	}

	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}

	return &Engine{
		level:             level,
		approvalThreshold: approval,
		cautionThreshold:  approval - 2,
		weights:           weights,
	}, nil
}

// Thresholds returns the engine's (approval, caution) thresholds.
func (e *Engine) Thresholds() (approval, caution float64) {
	return e.approvalThreshold, e.cautionThreshold
}

// Evaluate scores the criteria and maps the total onto the threshold bands.
// Invalid criteria are recovered as a reject verdict rather than an error,
// so one bad evaluation cannot crash a session loop.
func (e *Engine) Evaluate(criteria *Criteria, dctx *Context) *Result {
	if criteria == nil {
		return &Result{
			Action:    ActionReject,
			Approved:  false,
			Reasoning: "no criteria supplied, rejecting by policy",
		}
	}
	if err := criteria.Validate(); err != nil {
		return &Result{
			Action:    ActionReject,
			Approved:  false,
			Reasoning: fmt.Sprintf("invalid criteria (%v), rejecting by policy", err),
		}
	}

	score := ScoreCriteria(criteria, e.weights)

	var action Action
	switch {
	case score.Total >= e.approvalThreshold:
		action = ActionApprove
	case score.Total >= e.cautionThreshold:
		action = ActionCaution
	default:
		action = ActionReject
	}

	approved := action == ActionApprove
	if action == ActionCaution && !e.level.Params().PauseOnImportantDecisions {
		approved = true
	}

	return &Result{
		Action:    action,
		Approved:  approved,
		Score:     score,
		Reasoning: e.formatReasoning(score, action, dctx),
	}
}

// formatReasoning builds the deterministic human-readable breakdown.
func (e *Engine) formatReasoning(score Score, action Action, dctx *Context) string {
	reasoning := fmt.Sprintf(
		"CLOSE score: %.2f/10 (C=%.1f, L=%.1f, O=%.1f, S=%.1f, E=%.1f), thresholds: approval=%.1f, caution=%.1f, verdict: %s",
		score.Total,
		score.Convergence, score.Leverage, score.Optionality, score.Surplus, score.Evolution,
		e.approvalThreshold, e.cautionThreshold, action,
	)
	if dctx != nil && dctx.RecentErrors > 0 {
		reasoning += fmt.Sprintf(" (%d recent errors noted)", dctx.RecentErrors)
	}
	return reasoning
}
