package state

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultHistoryCap is the bound on retained history entries. When the cap
// is exceeded the oldest entries are dropped (FIFO truncation).
const DefaultHistoryCap = 100

// HistoryEntry records one state entry in the machine's history.
type HistoryEntry struct {
	// State is the state that was entered
	State ExecutionState `json:"state"`
	// EnteredAt is when the state was entered
	EnteredAt time.Time `json:"entered_at"`
	// PreviousState is the state the machine left (empty for the initial entry)
	PreviousState ExecutionState `json:"previous_state,omitempty"`
	// Reason is the caller-supplied reason for the transition
	Reason string `json:"reason,omitempty"`
	// Forced marks transitions that bypassed the legality check
	Forced bool `json:"forced,omitempty"`
}

// TransitionOptions carries optional per-transition data.
type TransitionOptions struct {
	// Reason is a human-readable explanation for the transition
	Reason string
	// Metadata is arbitrary context forwarded to the change callback
	Metadata map[string]interface{}
}

// Snapshot is the serializable form of a machine for persistence across
// process restarts. No derived fields: current state and history only.
type Snapshot struct {
	CurrentState ExecutionState `json:"current_state"`
	StateHistory []HistoryEntry `json:"state_history"`
}

// Machine tracks a session's current execution phase and validates/records
// transitions against a Graph. One instance is created per session and
// lives for the session's duration.
type Machine struct {
	mu         sync.RWMutex
	graph      *Graph
	current    ExecutionState
	history    []HistoryEntry
	historyCap int

	// OnStateChange is invoked after every successful transition
	OnStateChange func(from, to ExecutionState, opts TransitionOptions)
	// OnInvalidTransition is invoked when a transition is rejected
	OnInvalidTransition func(from, to ExecutionState, reason string)
}

// MachineConfig holds machine construction options.
type MachineConfig struct {
	// Graph is the transition table (default: DefaultGraph)
	Graph *Graph
	// HistoryCap bounds the retained history (default: DefaultHistoryCap)
	HistoryCap int
	// Initial is the starting state (default: idle)
	Initial ExecutionState
}

// NewMachine creates a state machine at the initial state with an opening
// history entry.
func NewMachine(cfg *MachineConfig) *Machine {
	if cfg == nil {
		cfg = &MachineConfig{}
	}
	graph := cfg.Graph
	if graph == nil {
		graph = DefaultGraph()
	}
	historyCap := cfg.HistoryCap
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	initial := cfg.Initial
	if initial == "" {
		initial = StateIdle
	}

	m := &Machine{
		graph:      graph,
		current:    initial,
		historyCap: historyCap,
	}
	m.history = append(m.history, HistoryEntry{
		State:     initial,
		EnteredAt: time.Now(),
	})
	return m
}

// Current returns the machine's current state.
func (m *Machine) Current() ExecutionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to the given state. Illegal transitions leave
// the machine unchanged, invoke OnInvalidTransition, and return false.
func (m *Machine) Transition(to ExecutionState, opts TransitionOptions) bool {
	m.mu.Lock()
	from := m.current
	if !m.graph.CanTransition(from, to) {
		m.mu.Unlock()
		reason := fmt.Sprintf("transition %s -> %s is not legal", from, to)
		if m.OnInvalidTransition != nil {
			m.OnInvalidTransition(from, to, reason)
		}
		return false
	}
	m.record(to, opts.Reason, false)
	m.mu.Unlock()

	if m.OnStateChange != nil {
		m.OnStateChange(from, to, opts)
	}
	return true
}

// ForceTransition bypasses the legality check. Used only for externally
// authorized overrides such as an operator abort; the history entry is
// marked forced.
func (m *Machine) ForceTransition(to ExecutionState, opts TransitionOptions) {
	m.mu.Lock()
	from := m.current
	m.record(to, opts.Reason, true)
	m.mu.Unlock()

	if m.OnStateChange != nil {
		m.OnStateChange(from, to, opts)
	}
}

// record appends a history entry and updates the current state.
// Caller must hold m.mu.
func (m *Machine) record(to ExecutionState, reason string, forced bool) {
	m.history = append(m.history, HistoryEntry{
		State:         to,
		EnteredAt:     time.Now(),
		PreviousState: m.current,
		Reason:        reason,
		Forced:        forced,
	})
	if len(m.history) > m.historyCap {
		m.history = m.history[len(m.history)-m.historyCap:]
	}
	m.current = to
}

// Reset clears history and returns to the initial idle state.
func (m *Machine) Reset(reason string) {
	m.mu.Lock()
	from := m.current
	m.current = StateIdle
	m.history = []HistoryEntry{{
		State:     StateIdle,
		EnteredAt: time.Now(),
		Reason:    reason,
	}}
	m.mu.Unlock()

	if m.OnStateChange != nil {
		m.OnStateChange(from, StateIdle, TransitionOptions{
			Reason:   reason,
			Metadata: map[string]interface{}{"reset": true},
		})
	}
}

// History returns a copy of the retained history entries, oldest first.
func (m *Machine) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// DetectLoop reports whether the session appears stuck revisiting a state.
// It examines the most recent threshold*2 history entries and returns true
// if the state appears at least threshold times.
func (m *Machine) DetectLoop(s ExecutionState, threshold int) bool {
	if threshold <= 0 {
		threshold = 3
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	window := threshold * 2
	start := len(m.history) - window
	if start < 0 {
		start = 0
	}

	count := 0
	for _, entry := range m.history[start:] {
		if entry.State == s {
			count++
		}
	}
	return count >= threshold
}

// TimeInCurrentState returns how long the machine has been in its current
// state.
func (m *Machine) TimeInCurrentState() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return 0
	}
	return time.Since(m.history[len(m.history)-1].EnteredAt)
}

// TotalTimeInState sums the time spent in the given state across every
// occurrence in the retained history, using now for the still-open final
// entry.
func (m *Machine) TotalTimeInState(s ExecutionState) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total time.Duration
	for i, entry := range m.history {
		if entry.State != s {
			continue
		}
		if i+1 < len(m.history) {
			total += m.history[i+1].EnteredAt.Sub(entry.EnteredAt)
		} else {
			total += time.Since(entry.EnteredAt)
		}
	}
	return total
}

// Dehydrate captures the machine's persistable state.
func (m *Machine) Dehydrate() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]HistoryEntry, len(m.history))
	copy(history, m.history)
	return Snapshot{
		CurrentState: m.current,
		StateHistory: history,
	}
}

// Rehydrate restores a machine from a snapshot. A corrupt current state
// falls back to idle with a loud log rather than crashing; the restored
// history is re-bounded to the machine's cap.
func (m *Machine) Rehydrate(snap Snapshot) {
	current := snap.CurrentState
	if !current.IsValid() {
		fmt.Fprintf(os.Stderr, "state: rehydrated snapshot has impossible current state %q, falling back to idle\n", snap.CurrentState)
		current = StateIdle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = current
	m.history = make([]HistoryEntry, len(snap.StateHistory))
	copy(m.history, snap.StateHistory)
	if len(m.history) > m.historyCap {
		m.history = m.history[len(m.history)-m.historyCap:]
	}
	if len(m.history) == 0 {
		m.history = []HistoryEntry{{State: current, EnteredAt: time.Now()}}
	}
}
