package types

import "time"

// RequirementStatus tracks a requirement through the backlog.
type RequirementStatus string

const (
	// RequirementPending indicates the requirement has not been scheduled yet
	RequirementPending RequirementStatus = "pending"
	// RequirementInProgress indicates the requirement is being worked on
	RequirementInProgress RequirementStatus = "in_progress"
	// RequirementCompleted indicates the requirement finished successfully
	RequirementCompleted RequirementStatus = "completed"
	// RequirementFailed indicates the requirement failed
	RequirementFailed RequirementStatus = "failed"
)

// IsValid checks whether the status is one of the known values.
func (s RequirementStatus) IsValid() bool {
	switch s {
	case RequirementPending, RequirementInProgress, RequirementCompleted, RequirementFailed:
		return true
	}
	return false
}

// Session is the persistent record of an execution session.
type Session struct {
	// ID is the unique session identifier
	ID string `json:"id"`
	// Goal is the human-readable objective the session is working toward
	Goal string `json:"goal"`
	// AutonomyLevel is the configured autonomy level for this session
	AutonomyLevel AutonomyLevel `json:"autonomy_level"`
	// Status is the session's current execution state
	Status string `json:"status"`
	// CreatedAt is when the session was created
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the session record last changed
	UpdatedAt time.Time `json:"updated_at"`
}
