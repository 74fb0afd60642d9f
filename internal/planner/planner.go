package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/autopilot/internal/types"
)

const (
	// DefaultMaxFailuresBeforePause is how many consecutive failures we
	// tolerate before refusing to continue regardless of autonomy level.
	DefaultMaxFailuresBeforePause = 3

	// lowResourceRatio is the remaining-budget fraction below which batch
	// size drops to a single task.
	lowResourceRatio = 0.2

	// subjectMaxLen bounds task subjects derived from long descriptions.
	subjectMaxLen = 60
)

// Config configures a Planner.
type Config struct {
	// AutonomyLevel drives batch sizing and the auto-continue default
	AutonomyLevel types.AutonomyLevel

	// Budget is the session resource budget remaining amounts are
	// measured against
	Budget types.ResourceBudget

	// MaxCycles overrides the autonomy level's cycle cap when > 0
	MaxCycles int

	// MaxFailuresBeforePause overrides the failure tolerance when > 0
	MaxFailuresBeforePause int
}

// DefaultConfig returns a planner configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AutonomyLevel:          types.AutonomyCrazy,
		Budget:                 types.DefaultResourceBudget(),
		MaxFailuresBeforePause: DefaultMaxFailuresBeforePause,
	}
}

// Planner decides what to work on next and whether to keep going.
type Planner struct {
	level       types.AutonomyLevel
	params      types.AutonomyParams
	budget      types.ResourceBudget
	maxCycles   int
	maxFailures int
}

// New creates a planner from cfg.
func New(cfg Config) (*Planner, error) {
	level := cfg.AutonomyLevel
	if level == "" {
		level = types.AutonomyCrazy
	}
	if _, err := types.ParseAutonomyLevel(string(level)); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}

	budget := cfg.Budget
	if budget == (types.ResourceBudget{}) {
		budget = types.DefaultResourceBudget()
	}
	if err := budget.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}

	params := level.Params()
	maxCycles := cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = params.MaxCycles
	}
	maxFailures := cfg.MaxFailuresBeforePause
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailuresBeforePause
	}

	return &Planner{
		level:       level,
		params:      params,
		budget:      budget,
		maxCycles:   maxCycles,
		maxFailures: maxFailures,
	}, nil
}

// AnalyzeCompletion inspects a checkpoint snapshot and reports whether the
// session is done, can keep going, or should pause. Resource exhaustion is
// checked first and short-circuits everything else.
func (p *Planner) AnalyzeCompletion(criteria CompletionCriteria) CompletionAnalysis {
	if criteria.ResourceExhausted {
		return CompletionAnalysis{
			AllComplete: false,
			CanContinue: false,
			ShouldPause: true,
			Reasons:     []string{"resource budget exhausted"},
		}
	}

	if criteria.RequirementsCompleted && criteria.TestsPassing &&
		criteria.VerificationPassed && criteria.NoBlockingIssues {
		return CompletionAnalysis{
			AllComplete: true,
			CanContinue: false,
			ShouldPause: false,
			Reasons:     []string{"all completion criteria satisfied"},
		}
	}

	var reasons []string
	if !criteria.RequirementsCompleted {
		reasons = append(reasons, "requirements still pending")
	}
	if !criteria.TestsPassing {
		reasons = append(reasons, "tests not passing")
	}
	if !criteria.VerificationPassed {
		reasons = append(reasons, "verification not passed")
	}
	if !criteria.NoBlockingIssues {
		reasons = append(reasons, "blocking issues present")
	}

	analysis := CompletionAnalysis{
		AllComplete: false,
		CanContinue: true,
		Reasons:     reasons,
	}

	// Blocking issues suspend progress at levels that don't auto-continue.
	if !criteria.NoBlockingIssues && !p.params.AutoContinue {
		analysis.ShouldPause = true
	}

	return analysis
}

// PlanNextSteps selects the next batch of tasks from the pending backlog.
// Requirements are ordered by priority, then by dependency count so the
// least entangled work within a priority tier goes first. The plan's
// continue verdict comes from the same gate as ShouldContinueExecution;
// tasks are selected either way so a paused session keeps its plan.
func (p *Planner) PlanNextSteps(pending []types.Requirement, ec *ExecutionContext) *Plan {
	if len(pending) == 0 {
		return &Plan{
			ShouldContinue: false,
			Reason:         "no pending requirements",
			Confidence:     1.0,
		}
	}

	ordered := make([]types.Requirement, len(pending))
	copy(ordered, pending)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].Priority.Rank(), ordered[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return len(ordered[i].Dependencies) < len(ordered[j].Dependencies)
	})

	batchSize := p.CalculateBatchSize(ec)
	if batchSize > len(ordered) {
		batchSize = len(ordered)
	}
	batch := ordered[:batchSize]

	tasks := make([]Task, 0, len(batch))
	cycles := len(batch)
	for _, req := range batch {
		tasks = append(tasks, Task{
			RequirementID: req.ID,
			Subject:       taskSubject(req.Description),
			Description:   req.Description,
			Priority:      req.Priority,
		})
		if len(req.Description) > 200 {
			cycles++
		}
		if req.Priority == types.PriorityCritical {
			cycles++
		}
	}

	reason := planReason(batch, ec.CurrentIteration+1)
	shouldContinue, gateReason := p.ShouldContinueExecution(ec)
	if !shouldContinue {
		reason = gateReason
	}

	return &Plan{
		ShouldContinue:  shouldContinue,
		Reason:          reason,
		NextTasks:       tasks,
		EstimatedCycles: cycles,
		Confidence:      p.CalculateConfidence(batch, ec),
	}
}

// ShouldContinueExecution is the hard gate consulted between cycles.
// The checks run in a fixed order so the reported reason is deterministic:
// iteration cap, then budget, then failure streak, then the level default.
func (p *Planner) ShouldContinueExecution(ec *ExecutionContext) (bool, string) {
	if p.maxCycles > 0 && ec.CurrentIteration >= p.maxCycles {
		return false, fmt.Sprintf("max iterations reached (%d)", p.maxCycles)
	}
	if ec.TokensRemaining <= 0 || ec.CostRemaining <= 0 {
		return false, "resource budget exhausted"
	}
	if ec.RecentFailures >= p.maxFailures {
		return false, fmt.Sprintf("too many recent failures (%d)", ec.RecentFailures)
	}
	if p.params.AutoContinue {
		return true, "auto-continue enabled"
	}
	return false, fmt.Sprintf("autonomy level %s requires confirmation", p.level)
}

// CalculateBatchSize returns how many tasks to schedule this cycle. The
// level's batch multiplier shrinks to one task when either budget dimension
// is running low.
func (p *Planner) CalculateBatchSize(ec *ExecutionContext) int {
	size := p.params.BatchMultiplier
	if size < 1 {
		size = 1
	}
	if p.resourceRatio(ec) < lowResourceRatio {
		return 1
	}
	return size
}

// CalculateConfidence estimates how likely the batch is to complete cleanly.
// The baseline is 0.8, lowered by recent errors and failures and raised
// slightly for an easy (low average weight) batch. Always within [0, 1].
func (p *Planner) CalculateConfidence(batch []types.Requirement, ec *ExecutionContext) float64 {
	confidence := 0.8
	if len(ec.RecentErrors) > 3 {
		confidence -= 0.2
	}
	if ec.RecentFailures > 2 {
		confidence -= 0.15 * float64(ec.RecentFailures)
	}
	if len(batch) > 0 {
		var total float64
		for _, req := range batch {
			total += float64(req.Priority.Weight())
		}
		if total/float64(len(batch)) <= 2 {
			confidence += 0.1
		}
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// PlanAfterTestFailure replans around a failing test. The fix is always a
// single critical task; the failure streak overrides auto-continue once it
// hits the pause threshold.
func (p *Planner) PlanAfterTestFailure(fc FailureContext, ec *ExecutionContext) *Plan {
	return p.planFix(fc, ec, types.PriorityCritical, "Fix failing test")
}

// PlanAfterVerificationFailure replans around a failed verification stage.
func (p *Planner) PlanAfterVerificationFailure(fc FailureContext, ec *ExecutionContext) *Plan {
	return p.planFix(fc, ec, types.PriorityHigh, "Fix verification failure")
}

func (p *Planner) planFix(fc FailureContext, ec *ExecutionContext, priority types.Priority, prefix string) *Plan {
	subject := prefix
	if fc.Subject != "" {
		subject = fmt.Sprintf("%s: %s", prefix, fc.Subject)
	}

	shouldContinue, reason := p.ShouldContinueExecution(ec)
	if fc.FailureCount >= p.maxFailures {
		shouldContinue = false
		reason = fmt.Sprintf("failure limit reached (%d attempts)", fc.FailureCount)
	}

	return &Plan{
		ShouldContinue: shouldContinue,
		Reason:         reason,
		NextTasks: []Task{{
			Subject:     taskSubject(subject),
			Description: strings.TrimSpace(fmt.Sprintf("%s\n\n%s", subject, fc.Detail)),
			Priority:    priority,
		}},
		EstimatedCycles: 1,
		Confidence:      p.CalculateConfidence(nil, ec),
	}
}

func (p *Planner) resourceRatio(ec *ExecutionContext) float64 {
	tokenRatio := float64(ec.TokensRemaining) / float64(p.budget.MaxTokens)
	costRatio := ec.CostRemaining / p.budget.MaxCostUSD
	if tokenRatio < costRatio {
		return tokenRatio
	}
	return costRatio
}

// planReason summarizes a batch by priority tier, e.g.
// "planned 3 tasks (2 critical, 1 high) for iteration 4".
func planReason(batch []types.Requirement, iteration int) string {
	counts := make(map[types.Priority]int)
	for _, req := range batch {
		counts[req.Priority]++
	}

	tiers := []types.Priority{types.PriorityCritical, types.PriorityHigh, types.PriorityMedium, types.PriorityLow}
	var parts []string
	for _, tier := range tiers {
		if n := counts[tier]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, tier))
		}
	}

	noun := "tasks"
	if len(batch) == 1 {
		noun = "task"
	}
	return fmt.Sprintf("planned %d %s (%s) for iteration %d",
		len(batch), noun, strings.Join(parts, ", "), iteration)
}

func taskSubject(description string) string {
	s := strings.TrimSpace(description)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > subjectMaxLen {
		s = strings.TrimSpace(s[:subjectMaxLen])
	}
	return s
}
