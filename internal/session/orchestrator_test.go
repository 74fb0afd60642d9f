package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/steveyegge/autopilot/internal/decision"
	"github.com/steveyegge/autopilot/internal/events"
	"github.com/steveyegge/autopilot/internal/planner"
	"github.com/steveyegge/autopilot/internal/state"
	"github.com/steveyegge/autopilot/internal/storage"
	"github.com/steveyegge/autopilot/internal/types"
)

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func succeedingExecutor() TaskExecutor {
	return ExecutorFunc(func(ctx context.Context, task planner.Task) (*TaskResult, error) {
		return &TaskResult{Success: true, InputTokens: 100, OutputTokens: 50}, nil
	})
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = newTestStore(t)
	}
	if cfg.Executor == nil {
		cfg.Executor = succeedingExecutor()
	}
	if cfg.AutonomyLevel == "" {
		// insane approves critical work without pausing on caution
		cfg.AutonomyLevel = types.AutonomyInsane
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestNewValidation(t *testing.T) {
	store := newTestStore(t)

	if _, err := New(Config{Executor: succeedingExecutor()}); err == nil {
		t.Error("New() without store should fail")
	}
	if _, err := New(Config{Store: store}); err == nil {
		t.Error("New() without executor should fail")
	}
	if _, err := New(Config{Store: store, Executor: succeedingExecutor(), AutonomyLevel: "reckless"}); err == nil {
		t.Error("New() with invalid autonomy level should fail")
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()

	if _, err := o.RunCycle(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("RunCycle() error = %v, want ErrNotStarted", err)
	}
	if err := o.Pause(ctx, "x"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Pause() error = %v, want ErrNotStarted", err)
	}
	if err := o.Resume(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Resume() error = %v, want ErrNotStarted", err)
	}
	if err := o.Stop(ctx, "x"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() error = %v, want ErrNotStarted", err)
	}
	if _, err := o.State(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("State() error = %v, want ErrNotStarted", err)
	}
	if _, err := o.Status(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Status() error = %v, want ErrNotStarted", err)
	}
}

func TestStartMovesToPlanning(t *testing.T) {
	o := newTestOrchestrator(t, Config{Goal: "ship it"})
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	current, err := o.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if current != state.StatePlanning {
		t.Errorf("state after Start = %s, want planning", current)
	}

	session, err := o.cfg.Store.GetSession(ctx, o.SessionID())
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.Goal != "ship it" {
		t.Errorf("persisted goal = %q, want %q", session.Goal, "ship it")
	}
	if session.Status != string(state.StatePlanning) {
		t.Errorf("persisted status = %q, want planning", session.Status)
	}

	if err := o.Start(ctx); err == nil {
		t.Error("double Start() should fail")
	}
}

func TestRunCycleCompletesBacklog(t *testing.T) {
	o := newTestOrchestrator(t, Config{Goal: "small backlog"})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	reqs := []*types.Requirement{
		{ID: "r1", Description: "Implement the widget loader", Priority: types.PriorityMedium},
		{ID: "r2", Description: "Implement the widget saver", Priority: types.PriorityLow},
	}
	for _, req := range reqs {
		if err := o.AddRequirement(ctx, req); err != nil {
			t.Fatalf("AddRequirement(%s) error = %v", req.ID, err)
		}
	}

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	current, _ := o.State()
	if current != state.StateCompleted {
		t.Errorf("final state = %s, want completed", current)
	}

	done, err := o.store.GetRequirements(ctx, o.SessionID(), types.RequirementCompleted)
	if err != nil {
		t.Fatalf("GetRequirements() error = %v", err)
	}
	if len(done) != 2 {
		t.Errorf("completed requirements = %d, want 2", len(done))
	}

	// Terminal sessions report done on subsequent cycles.
	finished, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() after completion error = %v", err)
	}
	if !finished {
		t.Error("RunCycle() after completion should report done")
	}
}

func TestRunCycleEmptyBacklogCompletes(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !done {
		t.Error("RunCycle() with empty backlog should complete")
	}
	current, _ := o.State()
	if current != state.StateCompleted {
		t.Errorf("state = %s, want completed", current)
	}
}

func TestCautionPausesUnderStricterLevel(t *testing.T) {
	// Critical work scores into the caution band under crazy, which pauses
	// on important decisions.
	o := newTestOrchestrator(t, Config{AutonomyLevel: types.AutonomyCrazy})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "risky",
		Description: "Rework the persistence schema",
		Priority:    types.PriorityCritical,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not be done after a caution pause")
	}
	current, _ := o.State()
	if current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}

	// The requirement was never claimed.
	pending, err := o.store.GetRequirements(ctx, o.SessionID(), types.RequirementPending)
	if err != nil {
		t.Fatalf("GetRequirements() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending requirements = %d, want 1", len(pending))
	}
}

func TestResumeAfterPause(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := o.Resume(ctx); err == nil {
		t.Error("Resume() on a running session should fail")
	}

	if err := o.Pause(ctx, "operator"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Fatalf("state = %s, want paused", current)
	}
	// Pausing again is a no-op.
	if err := o.Pause(ctx, "again"); err != nil {
		t.Errorf("second Pause() error = %v", err)
	}

	done, err := o.RunCycle(ctx)
	if err != nil || done {
		t.Errorf("RunCycle() while paused = (%v, %v), want (false, nil)", done, err)
	}

	if err := o.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if current, _ := o.State(); current != state.StatePlanning {
		t.Errorf("state after resume = %s, want planning", current)
	}
}

func TestStopIsTerminalAndIdempotent(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := o.Stop(ctx, "operator abort"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if current, _ := o.State(); current != state.StateFailed {
		t.Errorf("state after stop = %s, want failed", current)
	}
	if err := o.Stop(ctx, "again"); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := o.Pause(ctx, "late"); err == nil {
		t.Error("Pause() on a stopped session should fail")
	}
}

func TestExecutorFailureTriggersReplan(t *testing.T) {
	failing := ExecutorFunc(func(ctx context.Context, task planner.Task) (*TaskResult, error) {
		return &TaskResult{Success: false, Error: "compile error"}, nil
	})
	o := newTestOrchestrator(t, Config{Executor: failing})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Implement parsing",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not complete after a failed task")
	}

	failed, err := o.store.GetRequirements(ctx, o.SessionID(), types.RequirementFailed)
	if err != nil {
		t.Fatalf("GetRequirements() error = %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("failed requirements = %d, want 1", len(failed))
	}
	// The original failure plus the failed remedial task.
	if o.failureCount() != 2 {
		t.Errorf("failure count = %d, want 2", o.failureCount())
	}
	// Zero progress across the batch vetoes the checkpoint transition.
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}

	feed, err := o.store.GetSessionEvents(ctx, o.SessionID(), 100)
	if err != nil {
		t.Fatalf("GetSessionEvents() error = %v", err)
	}
	seen := make(map[events.EventType]bool)
	for _, e := range feed {
		seen[e.Type] = true
	}
	for _, want := range []events.EventType{
		events.EventTypeTaskStarted,
		events.EventTypeTaskFailed,
		events.EventTypeReplanAfterFailure,
		events.EventTypeTransitionVetoed,
	} {
		if !seen[want] {
			t.Errorf("event feed missing %s", want)
		}
	}
}

func TestFailureLimitPausesInsteadOfFixing(t *testing.T) {
	failing := ExecutorFunc(func(ctx context.Context, task planner.Task) (*TaskResult, error) {
		return &TaskResult{Success: false, Error: "still broken"}, nil
	})
	o := newTestOrchestrator(t, Config{Executor: failing})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Fix flaky integration test",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	// Already at the failure tolerance when the next failure lands.
	o.mu.Lock()
	o.recentFailures = planner.DefaultMaxFailuresBeforePause - 1
	o.mu.Unlock()

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not be done at the failure limit")
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}
	status, err := o.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !strings.Contains(status.PauseReason, "failure limit") {
		t.Errorf("PauseReason = %q, want failure limit reason", status.PauseReason)
	}
}

func TestBudgetExhaustionPauses(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		Budget: types.ResourceBudget{MaxTokens: 100, MaxCostUSD: 10.0, MaxDurationMinutes: 60},
	})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Do a thing",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	// Burn through the token budget.
	o.tracker.RecordUsage(80, 30)

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not complete when the budget is exhausted")
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}
}

func TestUsageFlowsIntoTracker(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Implement frobnication",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	status, err := o.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Usage.TokensUsed != 150 {
		t.Errorf("TokensUsed = %d, want 150", status.Usage.TokensUsed)
	}
	if status.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", status.Iteration)
	}
}

func TestLifecycleEventsPersisted(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Implement the exporter",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	feed, err := o.store.GetSessionEvents(ctx, o.SessionID(), 100)
	if err != nil {
		t.Fatalf("GetSessionEvents() error = %v", err)
	}

	want := []events.EventType{
		events.EventTypeSessionStarted,
		events.EventTypeStateChanged,
		events.EventTypePlanCreated,
		events.EventTypeDecisionMade,
		events.EventTypeTaskCompleted,
		events.EventTypeSessionCompleted,
	}
	seen := make(map[events.EventType]bool)
	for _, e := range feed {
		seen[e.Type] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("event feed missing %s", w)
		}
	}
}

func TestCriteriaForTask(t *testing.T) {
	tests := []struct {
		name     string
		task     planner.Task
		wantType decision.CriteriaType
		wantRisk types.RiskLevel
	}{
		{
			name:     "test work",
			task:     planner.Task{Subject: "Write tests for the parser", Priority: types.PriorityMedium},
			wantType: decision.CriteriaTest,
			wantRisk: types.RiskLow,
		},
		{
			name:     "critical work",
			task:     planner.Task{Subject: "Rework auth", Priority: types.PriorityCritical},
			wantType: decision.CriteriaImplementation,
			wantRisk: types.RiskHigh,
		},
		{
			name:     "ordinary work",
			task:     planner.Task{Subject: "Add a flag", Priority: types.PriorityLow},
			wantType: decision.CriteriaImplementation,
			wantRisk: types.RiskLow,
		},
	}

	o := newTestOrchestrator(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := o.criteriaForTask(tt.task)
			if c.Type != tt.wantType {
				t.Errorf("criteria type = %s, want %s", c.Type, tt.wantType)
			}
			if c.RiskLevel != tt.wantRisk {
				t.Errorf("criteria risk = %s, want %s", c.RiskLevel, tt.wantRisk)
			}
		})
	}
}

func TestDestructiveExecCommandPauses(t *testing.T) {
	// Medium-priority work under crazy approves on the template alone, but
	// a destructive shell command drops the score into the caution band.
	o := newTestOrchestrator(t, Config{
		AutonomyLevel: types.AutonomyCrazy,
		ExecCommand:   "rm -rf ./build && make install",
	})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Rebuild the project tree",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not be done after a caution pause")
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}
}

func TestStatusSafeDuringRun(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := o.AddRequirement(ctx, &types.Requirement{
			ID:          string(rune('a' + i)),
			Description: "Implement a unit of work",
			Priority:    types.PriorityMedium,
		}); err != nil {
			t.Fatalf("AddRequirement() error = %v", err)
		}
	}

	// Hammer the control-surface readers while the loop runs, the way
	// control-socket connections do. Run with -race.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := o.Status(); err != nil {
				return
			}
			if _, err := o.State(); err != nil {
				return
			}
		}
	}()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(stop)
	wg.Wait()

	if current, _ := o.State(); current != state.StateCompleted {
		t.Errorf("final state = %s, want completed", current)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newTestOrchestrator(t, Config{Goal: "long haul", Store: store})
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := first.Pause(ctx, "operator interrupt"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	second := newTestOrchestrator(t, Config{SessionID: first.SessionID(), Store: store})
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if current, _ := second.State(); current != state.StatePaused {
		t.Errorf("restored state = %s, want paused", current)
	}
	status, err := second.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Goal != "long haul" {
		t.Errorf("restored goal = %q, want %q", status.Goal, "long haul")
	}

	if err := second.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if current, _ := second.State(); current != state.StatePlanning {
		t.Errorf("state after resume = %s, want planning", current)
	}
}

func TestRestoreUnknownSessionFails(t *testing.T) {
	o := newTestOrchestrator(t, Config{SessionID: "no-such-session"})
	if err := o.Restore(context.Background()); err == nil {
		t.Error("Restore() of an unknown session should fail")
	}
}

func TestRepeatedFixCyclesPause(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.AddRequirement(ctx, &types.Requirement{
		ID:          "r1",
		Description: "Stabilize the build",
		Priority:    types.PriorityMedium,
	}); err != nil {
		t.Fatalf("AddRequirement() error = %v", err)
	}

	// Churn through fix cycles without completing anything.
	o.machine.Transition(state.StateExecuting, state.TransitionOptions{Reason: "t"})
	for i := 0; i < fixLoopThreshold; i++ {
		o.machine.Transition(state.StateFixing, state.TransitionOptions{Reason: "t"})
		o.machine.Transition(state.StateExecuting, state.TransitionOptions{Reason: "t"})
	}

	done, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if done {
		t.Error("RunCycle() should not be done after loop detection")
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state = %s, want paused", current)
	}

	feed, err := o.store.GetSessionEvents(ctx, o.SessionID(), 100)
	if err != nil {
		t.Fatalf("GetSessionEvents() error = %v", err)
	}
	var sawLoop bool
	for _, e := range feed {
		if e.Type == events.EventTypeStateLoopDetected {
			sawLoop = true
		}
	}
	if !sawLoop {
		t.Error("event feed missing state loop detection")
	}
}
