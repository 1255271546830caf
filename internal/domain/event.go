package domain

import "time"

// Roster event types.
const (
	EventAssigned      = "collaborator.assigned"
	EventUnassigned    = "collaborator.unassigned"
	EventReassigned    = "collaborator.reassigned"
	EventLeaderCreated = "team_leader.created"
	EventLeaderDeleted = "team_leader.deleted"
)

// RosterEvent describes a committed membership change.
type RosterEvent struct {
	Type             string
	CompanyID        string
	TeamLeaderID     string
	FromTeamLeaderID string
	CollaboratorIDs  []string
	OccurredAt       time.Time
}
