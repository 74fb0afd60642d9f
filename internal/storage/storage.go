// Package storage defines the persistence interface for sessions, state
// snapshots, the requirement backlog, and the session event feed.
package storage

import (
	"context"

	"github.com/steveyegge/autopilot/internal/events"
	"github.com/steveyegge/autopilot/internal/state"
	"github.com/steveyegge/autopilot/internal/storage/sqlite"
	"github.com/steveyegge/autopilot/internal/types"
)

// Storage defines the interface for session storage backends
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string) error
	ListSessions(ctx context.Context, limit int) ([]*types.Session, error)

	// State snapshots (checkpoint/resume)
	SaveSnapshot(ctx context.Context, sessionID string, snapshot *state.Snapshot) error
	GetSnapshot(ctx context.Context, sessionID string) (*state.Snapshot, error)

	// Requirement backlog
	AddRequirement(ctx context.Context, sessionID string, req *types.Requirement) error
	GetRequirements(ctx context.Context, sessionID string, status types.RequirementStatus) ([]types.Requirement, error)
	UpdateRequirementStatus(ctx context.Context, sessionID, requirementID string, status types.RequirementStatus) error

	// Session event feed
	AppendEvent(ctx context.Context, event *events.SessionEvent) error
	GetSessionEvents(ctx context.Context, sessionID string, limit int) ([]*events.SessionEvent, error)
	GetRecentEvents(ctx context.Context, limit int) ([]*events.SessionEvent, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".autopilot/autopilot.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".autopilot/autopilot.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".autopilot/autopilot.db"
	}
	return sqlite.New(cfg.Path)
}
