package domain

import "time"

// TeamLeader heads a crew with a bounded roster.
type TeamLeader struct {
	ID        string
	CompanyID string
	UserID    *string
	FirstName string
	LastName  string
	Color     string
	Capacity  int
	CreatedAt time.Time
}

// Assignment links a collaborator to the roster of a team leader.
type Assignment struct {
	TeamLeaderID   string
	CollaboratorID string
	Notes          string
	AssignedAt     time.Time
}

// TeamLeaderStats is a leader together with its current roster.
type TeamLeaderStats struct {
	TeamLeader
	Collaborators []User
}

// Count returns the roster size.
func (s TeamLeaderStats) Count() int {
	return len(s.Collaborators)
}
