package state

// ExecutionState represents the phase a session's control loop is in.
type ExecutionState string

const (
	// StateIdle means the session exists but no work has started
	StateIdle ExecutionState = "idle"
	// StatePlanning means the planner is computing the next batch of tasks
	StatePlanning ExecutionState = "planning"
	// StateExecuting means tasks are being executed by the external executor
	StateExecuting ExecutionState = "executing"
	// StateDeciding means a proposed action is being evaluated
	StateDeciding ExecutionState = "deciding"
	// StateFixing means the session is working through a failure recovery plan
	StateFixing ExecutionState = "fixing"
	// StatePaused means the control loop is suspended between planning cycles
	StatePaused ExecutionState = "paused"
	// StateCompleted is terminal success
	StateCompleted ExecutionState = "completed"
	// StateFailed is terminal failure
	StateFailed ExecutionState = "failed"
)

// IsTerminal returns true if no further transitions are legal from this state.
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid returns true if the state is a recognized value.
func (s ExecutionState) IsValid() bool {
	switch s {
	case StateIdle, StatePlanning, StateExecuting, StateDeciding,
		StateFixing, StatePaused, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s ExecutionState) String() string {
	return string(s)
}

// AllStates returns every recognized state.
func AllStates() []ExecutionState {
	return []ExecutionState{
		StateIdle,
		StatePlanning,
		StateExecuting,
		StateDeciding,
		StateFixing,
		StatePaused,
		StateCompleted,
		StateFailed,
	}
}

// Graph is a static table of legal state transitions. Legality checks are
// O(1) map lookups; the graph holds no mutable state.
type Graph struct {
	edges map[ExecutionState]map[ExecutionState]bool
}

// NewGraph builds a graph from explicit (from, to) pairs.
func NewGraph(pairs [][2]ExecutionState) *Graph {
	g := &Graph{edges: make(map[ExecutionState]map[ExecutionState]bool)}
	for _, p := range pairs {
		if g.edges[p[0]] == nil {
			g.edges[p[0]] = make(map[ExecutionState]bool)
		}
		g.edges[p[0]][p[1]] = true
	}
	return g
}

// DefaultGraph returns the standard session transition table.
//
// Any non-terminal state may pause; paused resumes to any non-terminal
// state; any non-terminal state may fail. Completed and failed are terminal.
func DefaultGraph() *Graph {
	pairs := [][2]ExecutionState{
		{StateIdle, StatePlanning},
		{StatePlanning, StateExecuting},
		{StatePlanning, StateCompleted},
		{StateExecuting, StateDeciding},
		{StateExecuting, StateFixing},
		{StateExecuting, StateCompleted},
		{StateDeciding, StateExecuting},
		{StateDeciding, StatePlanning},
		{StateDeciding, StateCompleted},
		{StateFixing, StateExecuting},
		{StatePaused, StateIdle},
		{StatePaused, StatePlanning},
		{StatePaused, StateExecuting},
		{StatePaused, StateDeciding},
		{StatePaused, StateFixing},
	}
	for _, s := range AllStates() {
		if s.IsTerminal() || s == StatePaused {
			continue
		}
		pairs = append(pairs, [2]ExecutionState{s, StatePaused})
		pairs = append(pairs, [2]ExecutionState{s, StateFailed})
	}
	// A paused session can still be failed (e.g. budget exhausted while parked)
	pairs = append(pairs, [2]ExecutionState{StatePaused, StateFailed})
	return NewGraph(pairs)
}

// CanTransition returns true if (from, to) is a legal transition.
func (g *Graph) CanTransition(from, to ExecutionState) bool {
	return g.edges[from][to]
}

// Successors returns the legal target states from the given state.
func (g *Graph) Successors(from ExecutionState) []ExecutionState {
	var out []ExecutionState
	for _, s := range AllStates() {
		if g.edges[from][s] {
			out = append(out, s)
		}
	}
	return out
}
