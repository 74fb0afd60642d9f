package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/autopilot/internal/events"
)

// AppendEvent stores a session event in the event feed
func (s *SQLiteStorage) AppendEvent(ctx context.Context, event *events.SessionEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO session_events (id, session_id, type, timestamp, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Type, event.Timestamp,
		event.Severity, event.Message, string(dataJSON))
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, session=%s): %w", event.Type, event.SessionID, err)
	}
	return nil
}

// GetSessionEvents retrieves a session's events, most recent first
func (s *SQLiteStorage) GetSessionEvents(ctx context.Context, sessionID string, limit int) ([]*events.SessionEvent, error) {
	query := `
		SELECT id, session_id, type, timestamp, severity, message, data
		FROM session_events WHERE session_id = ?
		ORDER BY timestamp DESC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

// GetRecentEvents retrieves the most recent events across all sessions
func (s *SQLiteStorage) GetRecentEvents(ctx context.Context, limit int) ([]*events.SessionEvent, error) {
	query := `
		SELECT id, session_id, type, timestamp, severity, message, data
		FROM session_events
		ORDER BY timestamp DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

func (s *SQLiteStorage) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*events.SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var result []*events.SessionEvent
	for rows.Next() {
		var event events.SessionEvent
		var dataJSON string
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Type, &event.Timestamp,
			&event.Severity, &event.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data for %s: %w", event.ID, err)
		}
		result = append(result, &event)
	}
	return result, rows.Err()
}
