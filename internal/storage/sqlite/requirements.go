package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/autopilot/internal/types"
)

// AddRequirement inserts a requirement into a session's backlog
func (s *SQLiteStorage) AddRequirement(ctx context.Context, sessionID string, req *types.Requirement) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	deps, err := json.Marshal(req.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO requirements (id, session_id, description, priority, dependencies, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		req.ID, sessionID, req.Description, req.Priority, string(deps),
		types.RequirementPending, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add requirement %s to session %s: %w", req.ID, sessionID, err)
	}
	return nil
}

// GetRequirements returns a session's requirements, optionally filtered by
// status (empty status returns all), oldest first.
func (s *SQLiteStorage) GetRequirements(ctx context.Context, sessionID string, status types.RequirementStatus) ([]types.Requirement, error) {
	query := `
		SELECT id, description, priority, dependencies, created_at
		FROM requirements WHERE session_id = ?
	`
	args := []interface{}{sessionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var reqs []types.Requirement
	for rows.Next() {
		var req types.Requirement
		var deps string
		if err := rows.Scan(&req.ID, &req.Description, &req.Priority, &deps, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &req.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies for %s: %w", req.ID, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpdateRequirementStatus moves a requirement through the backlog lifecycle
func (s *SQLiteStorage) UpdateRequirementStatus(ctx context.Context, sessionID, requirementID string, status types.RequirementStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid requirement status: %s", status)
	}

	query := `UPDATE requirements SET status = ? WHERE session_id = ? AND id = ?`
	result, err := s.db.ExecContext(ctx, query, status, sessionID, requirementID)
	if err != nil {
		return fmt.Errorf("failed to update requirement %s: %w", requirementID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("requirement not found: %s (session %s)", requirementID, sessionID)
	}
	return nil
}
