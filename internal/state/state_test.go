package state

import "testing"

func TestDefaultGraphLegality(t *testing.T) {
	g := DefaultGraph()

	legal := [][2]ExecutionState{
		{StateIdle, StatePlanning},
		{StatePlanning, StateExecuting},
		{StateExecuting, StateDeciding},
		{StateExecuting, StateFixing},
		{StateExecuting, StateCompleted},
		{StateFixing, StateExecuting},
		{StateDeciding, StatePlanning},
		{StateIdle, StatePaused},
		{StatePlanning, StatePaused},
		{StatePaused, StateExecuting},
		{StatePaused, StateFailed},
		{StateExecuting, StateFailed},
	}
	for _, p := range legal {
		if !g.CanTransition(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be legal", p[0], p[1])
		}
	}

	illegal := [][2]ExecutionState{
		{StateIdle, StateExecuting},
		{StateIdle, StateCompleted},
		{StateCompleted, StatePlanning},
		{StateFailed, StateIdle},
		{StateCompleted, StatePaused},
		{StateFixing, StateCompleted},
		{StatePlanning, StateFixing},
	}
	for _, p := range illegal {
		if g.CanTransition(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be illegal", p[0], p[1])
		}
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	g := DefaultGraph()
	for _, s := range []ExecutionState{StateCompleted, StateFailed} {
		if succ := g.Successors(s); len(succ) != 0 {
			t.Errorf("terminal state %s has successors: %v", s, succ)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StateCompleted.IsTerminal() || !StateFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
	if StatePaused.IsTerminal() || StateIdle.IsTerminal() {
		t.Error("paused and idle must not be terminal")
	}
}

func TestIsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if ExecutionState("daydreaming").IsValid() {
		t.Error("unknown state should be invalid")
	}
}
