package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/autopilot/internal/cost"
	"github.com/steveyegge/autopilot/internal/decision"
	"github.com/steveyegge/autopilot/internal/events"
	"github.com/steveyegge/autopilot/internal/guards"
	"github.com/steveyegge/autopilot/internal/planner"
	"github.com/steveyegge/autopilot/internal/state"
	"github.com/steveyegge/autopilot/internal/storage"
	"github.com/steveyegge/autopilot/internal/types"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("session not started")

const (
	// maxTrackedErrors bounds the recent error window fed to the planner
	maxTrackedErrors = 10
	// maxTrackedDecisions bounds the decision window fed to the engine
	maxTrackedDecisions = 10
	// maxScoreHistory bounds the score history kept for status reporting
	maxScoreHistory = 50
	// oscillationWindow and oscillationLimit configure the ping-pong guard
	oscillationWindow = 60 * time.Second
	oscillationLimit  = 5
	// maxGuardErrors is the error count at which guards freeze transitions
	maxGuardErrors = 10
	// fixLoopThreshold is how many fixing entries in the recent state
	// history trigger a loop pause
	fixLoopThreshold = 3
)

// Config configures an Orchestrator.
type Config struct {
	// SessionID is generated when empty
	SessionID string
	// Goal is the session objective
	Goal string
	// AutonomyLevel drives batching, thresholds, and pause policy
	AutonomyLevel types.AutonomyLevel
	// Budget bounds the session
	Budget types.ResourceBudget
	// DecisionThreshold overrides the level's approval threshold when > 0
	DecisionThreshold float64
	// Weights overrides the scoring weights (zero value means uniform)
	Weights decision.Weights
	// Store persists sessions, snapshots, requirements, and events (required)
	Store storage.Storage
	// Executor performs planned tasks (required)
	Executor TaskExecutor
	// ExecCommand is the shell command the executor runs per task, when
	// known. Set it to score the command's actual risk instead of the
	// task's template.
	ExecCommand string
	// UsageStatePath persists resource usage for restart recovery
	UsageStatePath string
}

// Orchestrator drives one session through its execution lifecycle.
//
// The loop itself is single-goroutine, but Pause, Resume, Stop, and Status
// arrive on control-socket connection goroutines, so the mutable session
// fields below mu are never touched without holding it.
type Orchestrator struct {
	cfg       Config
	sessionID string

	machine   *state.Machine
	guard     guards.Guard
	oscGuard  *guards.OscillationGuard
	engine    *decision.Engine
	planner   *planner.Planner
	tracker   *cost.Tracker
	store     storage.Storage
	executor  TaskExecutor
	publisher *events.Publisher

	mu          sync.RWMutex
	started     bool
	iteration   int
	resumeTo    state.ExecutionState
	pauseReason string

	recentErrors    []string
	recentFailures  int
	recentDecisions []decision.Action
	scoreHistory    []float64

	tasksTotal     int
	tasksCompleted int
	tasksFailed    int
}

// New creates an orchestrator from cfg. Nothing is persisted until Start.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.AutonomyLevel == "" {
		cfg.AutonomyLevel = types.AutonomyCrazy
	}
	if !cfg.AutonomyLevel.IsValid() {
		return nil, fmt.Errorf("invalid autonomy level: %q", cfg.AutonomyLevel)
	}
	if cfg.Budget == (types.ResourceBudget{}) {
		cfg.Budget = types.DefaultResourceBudget()
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	engine, err := decision.NewEngine(&decision.Config{
		AutonomyLevel:     cfg.AutonomyLevel,
		DecisionThreshold: cfg.DecisionThreshold,
		Weights:           cfg.Weights,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decision engine: %w", err)
	}

	plnr, err := planner.New(planner.Config{
		AutonomyLevel: cfg.AutonomyLevel,
		Budget:        cfg.Budget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	tracker, err := cost.NewTracker(cost.Config{
		Budget:           cfg.Budget,
		AlertThreshold:   cost.DefaultAlertThreshold,
		InputTokenCost:   cost.DefaultConfig().InputTokenCost,
		OutputTokenCost:  cost.DefaultConfig().OutputTokenCost,
		PersistStatePath: cfg.UsageStatePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resource tracker: %w", err)
	}

	oscGuard := guards.NewOscillationGuard(oscillationWindow, oscillationLimit)
	guard := guards.And(
		guards.Resource(cfg.Budget),
		guards.Errors(maxGuardErrors),
		guards.Progress(guards.DefaultMinProgressRatio),
		oscGuard,
	)

	o := &Orchestrator{
		cfg:       cfg,
		sessionID: sessionID,
		machine:   state.NewMachine(nil),
		guard:     guard,
		oscGuard:  oscGuard,
		engine:    engine,
		planner:   plnr,
		tracker:   tracker,
		store:     cfg.Store,
		executor:  cfg.Executor,
		publisher: events.NewPublisher(cfg.Store, 0),
	}
	o.wireCallbacks()
	return o, nil
}

// SessionID returns the session's identifier.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// wireCallbacks connects state machine transitions to persistence and the
// event feed. Callbacks run on the transitioning goroutine and must not
// touch the orchestrator's mu-guarded fields.
func (o *Orchestrator) wireCallbacks() {
	o.machine.OnStateChange = func(from, to state.ExecutionState, opts state.TransitionOptions) {
		ctx := context.Background()
		if err := o.store.UpdateSessionStatus(ctx, o.sessionID, string(to)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to update session status: %v\n", err)
		}
		o.saveSnapshot(ctx)

		event, err := events.NewStateChangedEvent(o.sessionID, events.SeverityInfo,
			fmt.Sprintf("%s -> %s", from, to),
			events.StateChangedData{FromState: string(from), ToState: string(to), Reason: opts.Reason})
		if err == nil {
			o.publisher.Publish(ctx, event)
		}
	}

	o.machine.OnInvalidTransition = func(from, to state.ExecutionState, reason string) {
		o.publisher.Publish(context.Background(), events.NewSimpleEvent(
			events.EventTypeInvalidTransition, o.sessionID, events.SeverityWarning, reason))
	}
}

// Start registers the session and moves it into planning. It must be called
// exactly once per orchestrator.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("session %s already started", o.sessionID)
	}
	o.started = true
	o.mu.Unlock()

	session := &types.Session{
		ID:            o.sessionID,
		Goal:          o.cfg.Goal,
		AutonomyLevel: o.cfg.AutonomyLevel,
		Status:        string(state.StateIdle),
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		o.mu.Lock()
		o.started = false
		o.mu.Unlock()
		return fmt.Errorf("failed to register session: %w", err)
	}

	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionStarted, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session started (autonomy: %s)", o.cfg.AutonomyLevel),
		map[string]interface{}{"goal": o.cfg.Goal}))

	o.machine.Transition(state.StatePlanning, state.TransitionOptions{Reason: "session start"})
	return nil
}

// Restore reattaches to a previously persisted session, rehydrating the
// state machine from its last snapshot. The session record must exist; a
// missing snapshot leaves the machine at idle. A session restored into
// paused stays paused until Resume.
func (o *Orchestrator) Restore(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("session %s already started", o.sessionID)
	}
	o.mu.Unlock()

	session, err := o.store.GetSession(ctx, o.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	snapshot, err := o.store.GetSnapshot(ctx, o.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snapshot != nil {
		o.machine.Rehydrate(*snapshot)
	}

	o.mu.Lock()
	o.started = true
	if o.cfg.Goal == "" {
		o.cfg.Goal = session.Goal
	}
	if o.machine.Current() == state.StatePaused {
		o.resumeTo = state.StatePlanning
		o.pauseReason = "restored while paused"
	}
	o.mu.Unlock()

	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionResumed, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session restored from snapshot (state: %s)", o.machine.Current()), nil))

	if o.machine.Current() == state.StateIdle {
		o.machine.Transition(state.StatePlanning, state.TransitionOptions{Reason: "session restored"})
	}
	return nil
}

// AddRequirement appends a requirement to the session backlog.
func (o *Orchestrator) AddRequirement(ctx context.Context, req *types.Requirement) error {
	return o.store.AddRequirement(ctx, o.sessionID, req)
}

// RunCycle executes one plan/execute/decide cycle. It returns done=true when
// the session reached a terminal state; a paused session returns done=false
// with no error so the caller can poll or wait for a resume.
func (o *Orchestrator) RunCycle(ctx context.Context) (done bool, err error) {
	if !o.isStarted() {
		return false, ErrNotStarted
	}

	current := o.machine.Current()
	if current.IsTerminal() {
		return true, nil
	}
	if current == state.StatePaused {
		return false, nil
	}

	// Repeated fix cycles mean the session is churning, not progressing.
	if o.machine.DetectLoop(state.StateFixing, fixLoopThreshold) {
		o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeStateLoopDetected,
			o.sessionID, events.SeverityWarning,
			fmt.Sprintf("repeated %s cycles detected", state.StateFixing)))
		return false, o.Pause(ctx, "repeated fix cycles detected")
	}

	// Hard gate before any work.
	ec := o.executionContext()
	if cont, reason := o.planner.ShouldContinueExecution(ec); !cont {
		o.emitBudgetAlertIfExhausted(ctx)
		return false, o.Pause(ctx, reason)
	}

	pending, err := o.store.GetRequirements(ctx, o.sessionID, types.RequirementPending)
	if err != nil {
		return false, o.fail(ctx, fmt.Errorf("failed to load backlog: %w", err))
	}
	if len(pending) == 0 {
		return true, o.complete(ctx, "no pending requirements")
	}

	if o.machine.Current() == state.StateDeciding {
		o.machine.Transition(state.StatePlanning, state.TransitionOptions{Reason: "next iteration"})
	}

	plan := o.planner.PlanNextSteps(pending, ec)
	if planEvent, err := events.NewPlanCreatedEvent(o.sessionID, events.SeverityInfo, plan.Reason,
		events.PlanCreatedData{
			TaskCount:       len(plan.NextTasks),
			EstimatedCycles: plan.EstimatedCycles,
			Confidence:      plan.Confidence,
			Iteration:       o.currentIteration() + 1,
		}); err == nil {
		o.publisher.Publish(ctx, planEvent)
	}
	if !plan.ShouldContinue {
		return false, o.Pause(ctx, plan.Reason)
	}

	if !o.guardedTransition(ctx, state.StateExecuting, "plan ready") {
		return false, nil
	}

	for _, task := range plan.NextTasks {
		proceed, err := o.runTask(ctx, task)
		if err != nil {
			return false, err
		}
		if !proceed {
			// A caution verdict or failed replan paused the session.
			return false, nil
		}
	}

	if !o.guardedTransition(ctx, state.StateDeciding, "batch finished") {
		return false, nil
	}

	analysis := o.planner.AnalyzeCompletion(o.completionCriteria(ctx))
	o.mu.Lock()
	o.iteration++
	o.mu.Unlock()

	if analysis.AllComplete {
		return true, o.complete(ctx, strings.Join(analysis.Reasons, "; "))
	}
	if analysis.ShouldPause {
		return false, o.Pause(ctx, strings.Join(analysis.Reasons, "; "))
	}
	return false, nil
}

// Run loops RunCycle until the session finishes, pauses, or ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := o.RunCycle(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if o.machine.Current() == state.StatePaused {
			return nil
		}
	}
}

// runTask evaluates and executes a single task. It returns proceed=false
// when the session paused mid-batch (caution verdict, guard veto, or a
// replan that hit the failure limit).
func (o *Orchestrator) runTask(ctx context.Context, task planner.Task) (proceed bool, err error) {
	criteria := o.criteriaForTask(task)

	o.mu.Lock()
	decisionCtx := &decision.Context{
		RecentErrors:    len(o.recentErrors),
		RecentDecisions: append([]decision.Action(nil), o.recentDecisions...),
	}
	o.mu.Unlock()

	result := o.engine.Evaluate(criteria, decisionCtx)
	o.trackDecision(result)

	if decEvent, derr := events.NewDecisionMadeEvent(o.sessionID, events.SeverityInfo,
		fmt.Sprintf("%s: %s", result.Action, task.Subject),
		events.DecisionMadeData{
			Action:    string(result.Action),
			Score:     result.Score.Total,
			Approved:  result.Approved,
			Reasoning: result.Reasoning,
		}); derr == nil {
		o.publisher.Publish(ctx, decEvent)
	}

	switch {
	case result.Action == decision.ActionReject:
		o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeDecisionRejected,
			o.sessionID, events.SeverityWarning,
			fmt.Sprintf("rejected: %s (%s)", task.Subject, result.Reasoning)))
		o.recordFailure(ctx, task, result.Reasoning)
		return true, nil

	case !result.Approved:
		// Caution under a pausing autonomy level: surrender control.
		o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeDecisionCaution,
			o.sessionID, events.SeverityWarning,
			fmt.Sprintf("caution requires review: %s", task.Subject)))
		return false, o.Pause(ctx, fmt.Sprintf("caution on task: %s", task.Subject))
	}

	if task.RequirementID != "" {
		if err := o.store.UpdateRequirementStatus(ctx, o.sessionID, task.RequirementID, types.RequirementInProgress); err != nil {
			return false, o.fail(ctx, fmt.Errorf("failed to claim requirement %s: %w", task.RequirementID, err))
		}
	}

	success, msg, execErr := o.executeTask(ctx, task)
	if execErr != nil {
		o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeError,
			o.sessionID, events.SeverityError,
			fmt.Sprintf("executor error on %s: %v", task.Subject, execErr)))
	}
	if !success {
		o.recordFailure(ctx, task, msg)
		return o.replanAfterFailure(ctx, task, msg)
	}

	o.mu.Lock()
	o.recentFailures = 0
	o.mu.Unlock()
	if task.RequirementID != "" {
		if err := o.store.UpdateRequirementStatus(ctx, o.sessionID, task.RequirementID, types.RequirementCompleted); err != nil {
			return false, o.fail(ctx, fmt.Errorf("failed to complete requirement %s: %w", task.RequirementID, err))
		}
	}
	return true, nil
}

// executeTask runs one task through the executor, records usage, tracks
// per-session progress counters, and emits the started/finished events.
func (o *Orchestrator) executeTask(ctx context.Context, task planner.Task) (success bool, failMsg string, execErr error) {
	o.mu.Lock()
	o.tasksTotal++
	o.mu.Unlock()

	o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeTaskStarted,
		o.sessionID, events.SeverityInfo, task.Subject))

	started := time.Now()
	taskResult, execErr := o.executor.ExecuteTask(ctx, task)
	if taskResult != nil {
		o.tracker.RecordUsage(taskResult.InputTokens, taskResult.OutputTokens)
	}

	if execErr != nil || taskResult == nil || !taskResult.Success {
		msg := "task failed"
		if execErr != nil {
			msg = execErr.Error()
		} else if taskResult != nil && taskResult.Error != "" {
			msg = taskResult.Error
		}
		o.mu.Lock()
		o.tasksFailed++
		o.mu.Unlock()
		o.publishTaskResult(ctx, events.EventTypeTaskFailed, events.SeverityError, task, false, msg, started)
		return false, msg, execErr
	}

	o.mu.Lock()
	o.tasksCompleted++
	o.mu.Unlock()
	o.publishTaskResult(ctx, events.EventTypeTaskCompleted, events.SeverityInfo, task, true, "", started)
	return true, "", nil
}

// replanAfterFailure plans a remedial fix task for a failed one and runs it
// through a fixing detour. A successful fix clears the failure streak; a
// plan that hits the failure limit pauses the session instead.
func (o *Orchestrator) replanAfterFailure(ctx context.Context, task planner.Task, failMsg string) (proceed bool, err error) {
	fc := planner.FailureContext{
		Subject:      task.Subject,
		Detail:       failMsg,
		FailureCount: o.failureCount(),
	}

	var plan *planner.Plan
	if strings.Contains(strings.ToLower(task.Subject), "test") {
		plan = o.planner.PlanAfterTestFailure(fc, o.executionContext())
	} else {
		plan = o.planner.PlanAfterVerificationFailure(fc, o.executionContext())
	}

	o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeReplanAfterFailure,
		o.sessionID, events.SeverityWarning,
		fmt.Sprintf("replanned after failure: %s (%s)", task.Subject, plan.Reason)))

	if !plan.ShouldContinue {
		return false, o.Pause(ctx, plan.Reason)
	}
	if !o.guardedTransition(ctx, state.StateFixing, "fix planned") {
		return false, nil
	}

	fixed := true
	for _, fix := range plan.NextTasks {
		success, msg, _ := o.executeTask(ctx, fix)
		if !success {
			fixed = false
			o.recordFailure(ctx, fix, msg)
		}
	}
	if fixed {
		o.mu.Lock()
		o.recentFailures = 0
		o.mu.Unlock()
	}

	if !o.guardedTransition(ctx, state.StateExecuting, "fix applied") {
		return false, nil
	}
	return true, nil
}

// Pause suspends the session from any non-terminal state. Pausing an
// already paused session is a no-op.
func (o *Orchestrator) Pause(ctx context.Context, reason string) error {
	if !o.isStarted() {
		return ErrNotStarted
	}
	current := o.machine.Current()
	if current.IsTerminal() {
		return fmt.Errorf("session %s already finished (%s)", o.sessionID, current)
	}
	if current == state.StatePaused {
		return nil
	}

	o.mu.Lock()
	o.resumeTo = current
	o.pauseReason = reason
	o.mu.Unlock()

	o.machine.Transition(state.StatePaused, state.TransitionOptions{Reason: reason})
	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionPaused, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session paused: %s", reason), nil))
	return nil
}

// Resume returns a paused session to the state it was paused from.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if !o.isStarted() {
		return ErrNotStarted
	}
	if o.machine.Current() != state.StatePaused {
		return fmt.Errorf("session %s is not paused (%s)", o.sessionID, o.machine.Current())
	}

	o.mu.Lock()
	target := o.resumeTo
	if target == "" || target == state.StatePaused {
		target = state.StatePlanning
	}
	o.pauseReason = ""
	o.mu.Unlock()

	o.oscGuard.Reset()
	o.machine.Transition(target, state.TransitionOptions{Reason: "resumed"})
	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionResumed, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session resumed into %s", target), nil))
	return nil
}

// Stop terminates the session. Stopping a finished session is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, reason string) error {
	if !o.isStarted() {
		return ErrNotStarted
	}
	if o.machine.Current().IsTerminal() {
		return nil
	}

	o.machine.Transition(state.StateFailed, state.TransitionOptions{Reason: reason})
	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionStopped, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session stopped: %s", reason), nil))
	return nil
}

// State returns the session's current execution state.
func (o *Orchestrator) State() (state.ExecutionState, error) {
	if !o.isStarted() {
		return "", ErrNotStarted
	}
	return o.machine.Current(), nil
}

// Status is a point-in-time session summary.
type Status struct {
	SessionID      string               `json:"session_id"`
	Goal           string               `json:"goal"`
	AutonomyLevel  types.AutonomyLevel  `json:"autonomy_level"`
	CrazinessScore int                  `json:"craziness_score"`
	State          state.ExecutionState `json:"state"`
	Paused         bool                 `json:"paused"`
	PauseReason    string               `json:"pause_reason,omitempty"`
	Iteration      int                  `json:"iteration"`
	RecentFailures int                  `json:"recent_failures"`
	DecisionScores []float64            `json:"decision_scores,omitempty"`
	Usage          cost.Stats           `json:"usage"`
}

// Status returns a summary snapshot of the session.
func (o *Orchestrator) Status() (*Status, error) {
	if !o.isStarted() {
		return nil, ErrNotStarted
	}
	current := o.machine.Current()

	o.mu.RLock()
	scores := make([]float64, len(o.scoreHistory))
	copy(scores, o.scoreHistory)
	status := &Status{
		SessionID:      o.sessionID,
		Goal:           o.cfg.Goal,
		AutonomyLevel:  o.cfg.AutonomyLevel,
		CrazinessScore: o.cfg.AutonomyLevel.CrazinessScore(),
		State:          current,
		Paused:         current == state.StatePaused,
		PauseReason:    o.pauseReason,
		Iteration:      o.iteration,
		RecentFailures: o.recentFailures,
		DecisionScores: scores,
	}
	o.mu.RUnlock()

	status.Usage = o.tracker.GetStats()
	return status, nil
}

// guardedTransition runs the guard chain before attempting a transition.
// A veto pauses the session instead of transitioning. Batch progress is
// only judged at the deciding checkpoint; mid-batch transitions carry no
// progress context so the first task of a session cannot be vetoed for
// having produced nothing yet.
func (o *Orchestrator) guardedTransition(ctx context.Context, to state.ExecutionState, reason string) bool {
	from := o.machine.Current()

	o.mu.RLock()
	tc := &guards.TransitionContext{
		ResourceUsage: o.tracker.Usage(),
		ErrorCount:    len(o.recentErrors),
	}
	if to == state.StateDeciding {
		tc.TaskProgress = &guards.TaskProgress{
			Completed: o.tasksCompleted,
			Total:     o.tasksTotal,
			Failed:    o.tasksFailed,
		}
	}
	o.mu.RUnlock()

	if !guards.Evaluate(ctx, o.guard, from, to, tc) {
		o.publisher.Publish(ctx, events.NewSimpleEvent(events.EventTypeTransitionVetoed,
			o.sessionID, events.SeverityWarning,
			fmt.Sprintf("guard vetoed %s -> %s", from, to)))
		_ = o.Pause(ctx, fmt.Sprintf("transition %s -> %s vetoed", from, to))
		return false
	}
	return o.machine.Transition(to, state.TransitionOptions{Reason: reason})
}

func (o *Orchestrator) complete(ctx context.Context, reason string) error {
	o.machine.Transition(state.StateCompleted, state.TransitionOptions{Reason: reason})
	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionCompleted, o.sessionID, events.SeverityInfo,
		fmt.Sprintf("session completed: %s", reason), nil))
	return nil
}

// fail moves the session to the failed terminal state after an
// unrecoverable error and returns that error for the caller to surface.
func (o *Orchestrator) fail(ctx context.Context, cause error) error {
	o.machine.Transition(state.StateFailed, state.TransitionOptions{Reason: cause.Error()})
	o.publisher.Publish(ctx, events.NewSessionLifecycleEvent(
		events.EventTypeSessionFailed, o.sessionID, events.SeverityError,
		fmt.Sprintf("session failed: %v", cause), nil))
	return cause
}

func (o *Orchestrator) isStarted() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.started
}

func (o *Orchestrator) currentIteration() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.iteration
}

func (o *Orchestrator) failureCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.recentFailures
}

func (o *Orchestrator) executionContext() *planner.ExecutionContext {
	tokens, costRemaining := o.tracker.Remaining()

	o.mu.RLock()
	defer o.mu.RUnlock()
	errs := make([]string, len(o.recentErrors))
	copy(errs, o.recentErrors)
	return &planner.ExecutionContext{
		CurrentIteration: o.iteration,
		TokensRemaining:  tokens,
		CostRemaining:    costRemaining,
		RecentErrors:     errs,
		RecentFailures:   o.recentFailures,
	}
}

func (o *Orchestrator) completionCriteria(ctx context.Context) planner.CompletionCriteria {
	pending, err := o.store.GetRequirements(ctx, o.sessionID, types.RequirementPending)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load backlog for completion check: %v\n", err)
	}
	canProceed, _ := o.tracker.CanProceed()
	failures := o.failureCount()

	return planner.CompletionCriteria{
		RequirementsCompleted: err == nil && len(pending) == 0,
		TestsPassing:          failures == 0,
		VerificationPassed:    true,
		NoBlockingIssues:      failures == 0,
		ResourceExhausted:     !canProceed,
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, task planner.Task, msg string) {
	o.mu.Lock()
	o.recentFailures++
	o.recentErrors = append(o.recentErrors, msg)
	if len(o.recentErrors) > maxTrackedErrors {
		o.recentErrors = o.recentErrors[len(o.recentErrors)-maxTrackedErrors:]
	}
	o.mu.Unlock()

	if task.RequirementID != "" {
		if err := o.store.UpdateRequirementStatus(ctx, o.sessionID, task.RequirementID, types.RequirementFailed); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to mark requirement %s failed: %v\n", task.RequirementID, err)
		}
	}
}

func (o *Orchestrator) trackDecision(result *decision.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recentDecisions = append(o.recentDecisions, result.Action)
	if len(o.recentDecisions) > maxTrackedDecisions {
		o.recentDecisions = o.recentDecisions[len(o.recentDecisions)-maxTrackedDecisions:]
	}
	o.scoreHistory = append(o.scoreHistory, result.Score.Total)
	if len(o.scoreHistory) > maxScoreHistory {
		o.scoreHistory = o.scoreHistory[len(o.scoreHistory)-maxScoreHistory:]
	}
}

func (o *Orchestrator) publishTaskResult(ctx context.Context, eventType events.EventType, severity events.EventSeverity, task planner.Task, success bool, errMsg string, started time.Time) {
	event := events.NewSimpleEvent(eventType, o.sessionID, severity, task.Subject)
	if err := event.SetTaskResultData(events.TaskResultData{
		Subject:    task.Subject,
		Priority:   string(task.Priority),
		Success:    success,
		Error:      errMsg,
		DurationMs: time.Since(started).Milliseconds(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to attach task result data: %v\n", err)
	}
	o.publisher.Publish(ctx, event)
}

func (o *Orchestrator) emitBudgetAlertIfExhausted(ctx context.Context) {
	if canProceed, reason := o.tracker.CanProceed(); !canProceed {
		stats := o.tracker.GetStats()
		if alert, err := events.NewBudgetAlertEvent(o.sessionID, events.SeverityCritical, reason,
			events.BudgetAlertData{
				Dimension: dimensionFromReason(reason),
				Used:      stats.CostUsed,
				Limit:     stats.Budget.MaxCostUSD,
				Exceeded:  true,
			}); err == nil {
			o.publisher.Publish(ctx, alert)
		}
	}
}

func (o *Orchestrator) saveSnapshot(ctx context.Context) {
	snapshot := o.machine.Dehydrate()
	if err := o.store.SaveSnapshot(ctx, o.sessionID, &snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save state snapshot: %v\n", err)
	}
}

// criteriaForTask scores a planned task. When the executor's shell command
// is known its text is inspected for destructive patterns; otherwise the
// task maps onto a scoring template. Test work is nearly free to undo;
// critical-priority work is treated as hard to reverse.
func (o *Orchestrator) criteriaForTask(task planner.Task) *decision.Criteria {
	if o.cfg.ExecCommand != "" {
		return decision.CriteriaForTool("shell", o.cfg.ExecCommand)
	}

	subject := strings.ToLower(task.Subject)
	switch {
	case strings.Contains(subject, "test"):
		return decision.TestWriting(task.Subject)
	case task.Priority == types.PriorityCritical:
		return decision.HighRiskArchitecture(task.Subject)
	default:
		return decision.LowRiskImplementation(task.Subject)
	}
}

func dimensionFromReason(reason string) string {
	switch {
	case strings.HasPrefix(reason, "token"):
		return "tokens"
	case strings.HasPrefix(reason, "cost"):
		return "cost"
	case strings.HasPrefix(reason, "duration"):
		return "duration"
	default:
		return "unknown"
	}
}
