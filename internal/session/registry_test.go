package session

import (
	"context"
	"testing"

	"github.com/steveyegge/autopilot/internal/control"
	"github.com/steveyegge/autopilot/internal/state"
)

func TestRegistryCapacity(t *testing.T) {
	r := NewRegistry(2)
	store := newTestStore(t)

	a := newTestOrchestrator(t, Config{SessionID: "a", Store: store})
	b := newTestOrchestrator(t, Config{SessionID: "b", Store: store})
	c := newTestOrchestrator(t, Config{SessionID: "c", Store: store})

	if err := r.Add(a); err != nil {
		t.Fatalf("Add(a) error = %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("Add(b) error = %v", err)
	}
	if err := r.Add(c); err == nil {
		t.Error("Add(c) over capacity should fail")
	}

	r.Remove("a")
	if err := r.Add(c); err != nil {
		t.Errorf("Add(c) after Remove(a) error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryDuplicateAdd(t *testing.T) {
	r := NewRegistry(4)
	store := newTestStore(t)
	o := newTestOrchestrator(t, Config{SessionID: "dup", Store: store})

	if err := r.Add(o); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(o); err == nil {
		t.Error("duplicate Add() should fail")
	}
	// The rejected add must not leak a slot.
	r.Remove("dup")
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestHandleCommandLifecycle(t *testing.T) {
	r := NewRegistry(4)
	ctx := context.Background()
	o := newTestOrchestrator(t, Config{Goal: "controlled run"})
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Add(o); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Empty session ID resolves when exactly one session is registered.
	data, err := r.HandleCommand(control.Command{Type: control.CommandStatus})
	if err != nil {
		t.Fatalf("HandleCommand(status) error = %v", err)
	}
	if data["state"] != string(state.StatePlanning) {
		t.Errorf("status state = %v, want planning", data["state"])
	}
	if data["goal"] != "controlled run" {
		t.Errorf("status goal = %v, want %q", data["goal"], "controlled run")
	}

	if _, err := r.HandleCommand(control.Command{Type: control.CommandPause, SessionID: o.SessionID()}); err != nil {
		t.Fatalf("HandleCommand(pause) error = %v", err)
	}
	if current, _ := o.State(); current != state.StatePaused {
		t.Errorf("state after pause = %s, want paused", current)
	}

	if _, err := r.HandleCommand(control.Command{Type: control.CommandResume, SessionID: o.SessionID()}); err != nil {
		t.Fatalf("HandleCommand(resume) error = %v", err)
	}
	if current, _ := o.State(); current != state.StatePlanning {
		t.Errorf("state after resume = %s, want planning", current)
	}

	if _, err := r.HandleCommand(control.Command{Type: control.CommandStop, SessionID: o.SessionID(), Reason: "done testing"}); err != nil {
		t.Fatalf("HandleCommand(stop) error = %v", err)
	}
	if current, _ := o.State(); current != state.StateFailed {
		t.Errorf("state after stop = %s, want failed", current)
	}
}

func TestHandleCommandErrors(t *testing.T) {
	r := NewRegistry(4)
	ctx := context.Background()

	// No sessions registered.
	if _, err := r.HandleCommand(control.Command{Type: control.CommandStatus}); err == nil {
		t.Error("HandleCommand() with no sessions should fail")
	}

	store := newTestStore(t)
	a := newTestOrchestrator(t, Config{SessionID: "a", Store: store})
	b := newTestOrchestrator(t, Config{SessionID: "b", Store: store})
	for _, o := range []*Orchestrator{a, b} {
		if err := o.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := r.Add(o); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	// Ambiguous empty session ID with two sessions.
	if _, err := r.HandleCommand(control.Command{Type: control.CommandStatus}); err == nil {
		t.Error("HandleCommand() with ambiguous target should fail")
	}
	// Unknown session.
	if _, err := r.HandleCommand(control.Command{Type: control.CommandStatus, SessionID: "nope"}); err == nil {
		t.Error("HandleCommand() for unknown session should fail")
	}
	// Unknown command type.
	if _, err := r.HandleCommand(control.Command{Type: "reboot", SessionID: "a"}); err == nil {
		t.Error("HandleCommand() with unknown type should fail")
	}
}
