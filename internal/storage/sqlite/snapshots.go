package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/autopilot/internal/state"
)

// SaveSnapshot upserts the state machine snapshot for a session
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, sessionID string, snapshot *state.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO state_snapshots (session_id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot for session %s: %w", sessionID, err)
	}
	return nil
}

// GetSnapshot retrieves the saved state machine snapshot for a session.
// Returns nil with no error when no snapshot exists yet.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, sessionID string) (*state.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM state_snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for session %s: %w", sessionID, err)
	}

	var snapshot state.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for session %s: %w", sessionID, err)
	}
	return &snapshot, nil
}
