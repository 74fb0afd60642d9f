package events

import (
	"time"

	"github.com/google/uuid"
)

// NewStateChangedEvent creates a new SessionEvent for a state transition with type-safe data.
func NewStateChangedEvent(sessionID string, severity EventSeverity, message string, data StateChangedData) (*SessionEvent, error) {
	event := &SessionEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeStateChanged,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
	}
	if err := event.SetStateChangedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewDecisionMadeEvent creates a new SessionEvent for a scored decision with type-safe data.
func NewDecisionMadeEvent(sessionID string, severity EventSeverity, message string, data DecisionMadeData) (*SessionEvent, error) {
	event := &SessionEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeDecisionMade,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
	}
	if err := event.SetDecisionMadeData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPlanCreatedEvent creates a new SessionEvent for a new plan with type-safe data.
func NewPlanCreatedEvent(sessionID string, severity EventSeverity, message string, data PlanCreatedData) (*SessionEvent, error) {
	event := &SessionEvent{
		ID:        uuid.New().String(),
		Type:      EventTypePlanCreated,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
	}
	if err := event.SetPlanCreatedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewBudgetAlertEvent creates a new SessionEvent for a budget alert with type-safe data.
func NewBudgetAlertEvent(sessionID string, severity EventSeverity, message string, data BudgetAlertData) (*SessionEvent, error) {
	event := &SessionEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeBudgetAlert,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
	}
	if err := event.SetBudgetAlertData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewSessionLifecycleEvent creates a new SessionEvent for lifecycle events (no specific data structure).
func NewSessionLifecycleEvent(eventType EventType, sessionID string, severity EventSeverity, message string, data map[string]interface{}) *SessionEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &SessionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewSimpleEvent creates a new SessionEvent with no structured data (for progress, errors, etc.).
func NewSimpleEvent(eventType EventType, sessionID string, severity EventSeverity, message string) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}
