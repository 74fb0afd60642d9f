package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/autopilot/internal/control"
)

// DefaultMaxSessions caps concurrent sessions per registry.
const DefaultMaxSessions = 4

// Registry tracks live orchestrators and dispatches control commands to
// them. It enforces a concurrency cap so a runaway caller cannot spawn
// unbounded sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	sem      *semaphore.Weighted
}

// NewRegistry creates a registry allowing up to maxSessions concurrent
// sessions. Zero or negative means DefaultMaxSessions.
func NewRegistry(maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		sessions: make(map[string]*Orchestrator),
		sem:      semaphore.NewWeighted(int64(maxSessions)),
	}
}

// Add registers an orchestrator, consuming one concurrency slot.
func (r *Registry) Add(o *Orchestrator) error {
	if !r.sem.TryAcquire(1) {
		return fmt.Errorf("session limit reached")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[o.SessionID()]; exists {
		r.sem.Release(1)
		return fmt.Errorf("session %s already registered", o.SessionID())
	}
	r.sessions[o.SessionID()] = o
	return nil
}

// Remove deregisters a session and frees its slot. Removing an unknown
// session is a no-op.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sessionID]; exists {
		delete(r.sessions, sessionID)
		r.sem.Release(1)
	}
}

// Get returns the orchestrator for sessionID, or nil.
func (r *Registry) Get(sessionID string) *Orchestrator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// List returns the IDs of all registered sessions.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// resolve looks up the target session for a command. An empty session ID is
// allowed when exactly one session is registered.
func (r *Registry) resolve(sessionID string) (*Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sessionID == "" {
		if len(r.sessions) != 1 {
			return nil, fmt.Errorf("session_id required (%d sessions registered)", len(r.sessions))
		}
		for _, o := range r.sessions {
			return o, nil
		}
	}
	o, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}
	return o, nil
}

// HandleCommand dispatches a control socket command to its target session.
// The signature matches the control server's handler.
func (r *Registry) HandleCommand(cmd control.Command) (map[string]interface{}, error) {
	ctx := context.Background()

	o, err := r.resolve(cmd.SessionID)
	if err != nil {
		return nil, err
	}

	switch cmd.Type {
	case control.CommandPause:
		reason := cmd.Reason
		if reason == "" {
			reason = "operator pause"
		}
		if err := o.Pause(ctx, reason); err != nil {
			return nil, err
		}
		return map[string]interface{}{"session_id": o.SessionID(), "state": "paused"}, nil

	case control.CommandResume:
		if err := o.Resume(ctx); err != nil {
			return nil, err
		}
		current, _ := o.State()
		return map[string]interface{}{"session_id": o.SessionID(), "state": string(current)}, nil

	case control.CommandStop:
		reason := cmd.Reason
		if reason == "" {
			reason = "operator stop"
		}
		if err := o.Stop(ctx, reason); err != nil {
			return nil, err
		}
		return map[string]interface{}{"session_id": o.SessionID(), "state": "stopped"}, nil

	case control.CommandStatus:
		status, err := o.Status()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"session_id":      status.SessionID,
			"goal":            status.Goal,
			"autonomy_level":  string(status.AutonomyLevel),
			"craziness_score": status.CrazinessScore,
			"state":           string(status.State),
			"paused":          status.Paused,
			"pause_reason":    status.PauseReason,
			"iteration":       status.Iteration,
			"recent_failures": status.RecentFailures,
			"tokens_used":     status.Usage.TokensUsed,
			"cost_used":       status.Usage.CostUsed,
		}, nil

	default:
		return nil, fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}
