package state

import (
	"testing"
	"time"
)

func TestTransitionLegal(t *testing.T) {
	m := NewMachine(nil)

	if m.Current() != StateIdle {
		t.Fatalf("initial state = %s, want idle", m.Current())
	}

	var gotFrom, gotTo ExecutionState
	m.OnStateChange = func(from, to ExecutionState, opts TransitionOptions) {
		gotFrom, gotTo = from, to
	}

	if !m.Transition(StatePlanning, TransitionOptions{Reason: "work available"}) {
		t.Fatal("idle -> planning should succeed")
	}
	if m.Current() != StatePlanning {
		t.Errorf("current = %s, want planning", m.Current())
	}
	if gotFrom != StateIdle || gotTo != StatePlanning {
		t.Errorf("callback got %s -> %s", gotFrom, gotTo)
	}

	history := m.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	last := history[len(history)-1]
	if last.State != StatePlanning || last.PreviousState != StateIdle || last.Reason != "work available" {
		t.Errorf("unexpected history entry: %+v", last)
	}
}

func TestTransitionIllegalLeavesStateUnchanged(t *testing.T) {
	g := DefaultGraph()
	for _, from := range AllStates() {
		for _, to := range AllStates() {
			if g.CanTransition(from, to) {
				continue
			}

			m := NewMachine(&MachineConfig{Initial: from})
			invalidCalled := false
			m.OnInvalidTransition = func(f, tt ExecutionState, reason string) {
				invalidCalled = true
				if reason == "" {
					t.Error("invalid transition must carry a reason")
				}
			}

			if m.Transition(to, TransitionOptions{}) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
			if m.Current() != from {
				t.Errorf("state mutated on rejected transition %s -> %s", from, to)
			}
			if !invalidCalled {
				t.Errorf("OnInvalidTransition not called for %s -> %s", from, to)
			}
			if len(m.History()) != 1 {
				t.Errorf("history grew on rejected transition %s -> %s", from, to)
			}
		}
	}
}

func TestForceTransition(t *testing.T) {
	m := NewMachine(nil)

	// idle -> failed directly is legal, so force something that is not
	m.ForceTransition(StateCompleted, TransitionOptions{Reason: "operator abort"})
	if m.Current() != StateCompleted {
		t.Errorf("current = %s, want completed", m.Current())
	}

	history := m.History()
	last := history[len(history)-1]
	if !last.Forced {
		t.Error("forced transition must be marked in history")
	}
}

func TestHistoryBound(t *testing.T) {
	m := NewMachine(&MachineConfig{HistoryCap: 10})

	// Oscillate executing/deciding to generate history
	m.Transition(StatePlanning, TransitionOptions{})
	m.Transition(StateExecuting, TransitionOptions{})
	for i := 0; i < 30; i++ {
		m.Transition(StateDeciding, TransitionOptions{})
		m.Transition(StateExecuting, TransitionOptions{})
	}

	history := m.History()
	if len(history) != 10 {
		t.Fatalf("history length = %d, want cap 10", len(history))
	}
	// Retained entries are the most recent: the final entry matches current state
	if history[len(history)-1].State != m.Current() {
		t.Error("last history entry should match current state")
	}
}

func TestReset(t *testing.T) {
	m := NewMachine(nil)
	m.Transition(StatePlanning, TransitionOptions{})
	m.Transition(StateExecuting, TransitionOptions{})

	var resetFlag bool
	m.OnStateChange = func(from, to ExecutionState, opts TransitionOptions) {
		if v, ok := opts.Metadata["reset"].(bool); ok {
			resetFlag = v
		}
	}

	m.Reset("operator restart")
	if m.Current() != StateIdle {
		t.Errorf("current = %s, want idle after reset", m.Current())
	}
	if len(m.History()) != 1 {
		t.Errorf("history length = %d, want 1 after reset", len(m.History()))
	}
	if !resetFlag {
		t.Error("reset event must carry reset:true metadata")
	}
}

func TestDetectLoop(t *testing.T) {
	m := NewMachine(nil)
	m.Transition(StatePlanning, TransitionOptions{})
	m.Transition(StateExecuting, TransitionOptions{})

	// Visit deciding 3 times within the last 6 entries
	for i := 0; i < 3; i++ {
		m.Transition(StateDeciding, TransitionOptions{})
		m.Transition(StateExecuting, TransitionOptions{})
	}

	if !m.DetectLoop(StateDeciding, 3) {
		t.Error("expected loop detection for deciding with threshold 3")
	}
	if m.DetectLoop(StateDeciding, 4) {
		t.Error("threshold 4 should not trigger with only 3 visits in window")
	}
	if m.DetectLoop(StateFixing, 3) {
		t.Error("fixing never visited, no loop expected")
	}
}

func TestDetectLoopWindowExcludesOldEntries(t *testing.T) {
	m := NewMachine(nil)
	m.Transition(StatePlanning, TransitionOptions{})
	m.Transition(StateExecuting, TransitionOptions{})

	// Two visits to deciding, then push them out of the threshold*2 window
	m.Transition(StateDeciding, TransitionOptions{})
	m.Transition(StateExecuting, TransitionOptions{})
	m.Transition(StateDeciding, TransitionOptions{})
	for i := 0; i < 4; i++ {
		m.Transition(StateExecuting, TransitionOptions{})
		m.Transition(StateFixing, TransitionOptions{})
	}

	if m.DetectLoop(StateDeciding, 2) {
		t.Error("old visits outside the window should not count")
	}
}

func TestTimeInState(t *testing.T) {
	m := NewMachine(nil)
	m.Transition(StatePlanning, TransitionOptions{})
	time.Sleep(20 * time.Millisecond)

	if d := m.TimeInCurrentState(); d < 20*time.Millisecond {
		t.Errorf("TimeInCurrentState = %v, want >= 20ms", d)
	}
	if d := m.TotalTimeInState(StatePlanning); d < 20*time.Millisecond {
		t.Errorf("TotalTimeInState(planning) = %v, want >= 20ms", d)
	}
	if d := m.TotalTimeInState(StateExecuting); d != 0 {
		t.Errorf("TotalTimeInState(executing) = %v, want 0", d)
	}
}

func TestDehydrateRehydrate(t *testing.T) {
	m := NewMachine(nil)
	m.Transition(StatePlanning, TransitionOptions{Reason: "start"})
	m.Transition(StateExecuting, TransitionOptions{})

	snap := m.Dehydrate()
	if snap.CurrentState != StateExecuting {
		t.Errorf("snapshot current = %s, want executing", snap.CurrentState)
	}
	if len(snap.StateHistory) != 3 {
		t.Errorf("snapshot history length = %d, want 3", len(snap.StateHistory))
	}

	restored := NewMachine(nil)
	restored.Rehydrate(snap)
	if restored.Current() != StateExecuting {
		t.Errorf("restored current = %s, want executing", restored.Current())
	}
	history := restored.History()
	if len(history) != 3 || history[1].Reason != "start" {
		t.Errorf("restored history mismatch: %+v", history)
	}
}

func TestRehydrateRejectsImpossibleState(t *testing.T) {
	m := NewMachine(nil)
	m.Rehydrate(Snapshot{CurrentState: "corrupted", StateHistory: nil})

	if m.Current() != StateIdle {
		t.Errorf("corrupt snapshot should fall back to idle, got %s", m.Current())
	}
	if len(m.History()) == 0 {
		t.Error("rehydrate must leave a usable history")
	}
}
