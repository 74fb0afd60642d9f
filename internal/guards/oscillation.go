package guards

import (
	"context"
	"sync"
	"time"

	"github.com/steveyegge/autopilot/internal/state"
)

const (
	// DefaultOscillationWindow is how far back transitions count toward the
	// oscillation limit
	DefaultOscillationWindow = 60 * time.Second
	// DefaultMaxOscillations is the number of same-pair transitions allowed
	// inside the window before the guard vetoes
	DefaultMaxOscillations = 5
)

// transitionRecord is one recorded transition in the guard's ring.
type transitionRecord struct {
	from state.ExecutionState
	to   state.ExecutionState
	at   time.Time
}

// OscillationGuard vetoes transitions when the session rapidly alternates
// between the same pair of states. It is the only stateful guard: construct
// one instance per session and keep it for the session's lifetime - never
// recreate it per call, or the window resets and the limit never trips.
type OscillationGuard struct {
	mu              sync.Mutex
	window          time.Duration
	maxOscillations int
	recent          []transitionRecord

	now func() time.Time // test seam
}

// NewOscillationGuard creates an oscillation guard. Zero values select the
// defaults (60s window, 5 oscillations).
func NewOscillationGuard(window time.Duration, maxOscillations int) *OscillationGuard {
	if window <= 0 {
		window = DefaultOscillationWindow
	}
	if maxOscillations <= 0 {
		maxOscillations = DefaultMaxOscillations
	}
	return &OscillationGuard{
		window:          window,
		maxOscillations: maxOscillations,
		now:             time.Now,
	}
}

// Check prunes expired records, counts transitions over the same pair in
// either direction (the candidate transition included), and vetoes without
// recording once that count reaches the limit. A passing transition is
// recorded. With the default limit of 5, the fifth same-pair transition
// inside the window is the first one vetoed.
//
// The record-then-check sequence is atomic under the guard's mutex, so
// concurrent transition attempts for the same session cannot both slip
// under the limit.
func (g *OscillationGuard) Check(ctx context.Context, from, to state.ExecutionState, tc *TransitionContext) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	kept := g.recent[:0]
	for _, r := range g.recent {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	g.recent = kept

	count := 0
	for _, r := range g.recent {
		if (r.from == from && r.to == to) || (r.from == to && r.to == from) {
			count++
		}
	}
	if count+1 >= g.maxOscillations {
		return false, nil
	}

	g.recent = append(g.recent, transitionRecord{from: from, to: to, at: now})
	return true, nil
}

// Reset discards all recorded transitions.
func (g *OscillationGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recent = nil
}
