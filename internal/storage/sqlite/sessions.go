package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/autopilot/internal/types"
)

// CreateSession inserts a new session record
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *types.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, goal, autonomy_level, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.Goal, session.AutonomyLevel, session.Status,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*types.Session, error) {
	query := `
		SELECT id, goal, autonomy_level, status, created_at, updated_at
		FROM sessions WHERE id = ?
	`
	var session types.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.Goal, &session.AutonomyLevel, &session.Status,
		&session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// UpdateSessionStatus updates a session's status and touches updated_at
func (s *SQLiteStorage) UpdateSessionStatus(ctx context.Context, id, status string) error {
	query := `UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session %s status: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// ListSessions returns sessions ordered newest first
func (s *SQLiteStorage) ListSessions(ctx context.Context, limit int) ([]*types.Session, error) {
	query := `
		SELECT id, goal, autonomy_level, status, created_at, updated_at
		FROM sessions ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var session types.Session
		if err := rows.Scan(&session.ID, &session.Goal, &session.AutonomyLevel,
			&session.Status, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}
