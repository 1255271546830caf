package repository

import (
	"context"

	"github.com/skybtp/crewboard/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsersByCompany(ctx context.Context, companyID string) ([]domain.User, error)
}

// TeamRepository manages team leaders and roster membership. Every method is
// scoped to a company; rows of other companies behave as missing.
type TeamRepository interface {
	CreateTeamLeader(ctx context.Context, leader *domain.TeamLeader) error
	GetTeamLeader(ctx context.Context, companyID, leaderID string) (*domain.TeamLeader, error)
	ListTeamLeaderStats(ctx context.Context, companyID string) ([]domain.TeamLeaderStats, error)
	// AssignCollaborator adds the collaborator to the roster unless the roster
	// already holds capacity members (ErrRosterFull) or the collaborator sits
	// on any roster (ErrAlreadyAssigned). The check and insert are atomic.
	AssignCollaborator(ctx context.Context, companyID string, assignment *domain.Assignment) error
	// ReassignCollaborator moves the collaborator between rosters atomically.
	ReassignCollaborator(ctx context.Context, companyID, collaboratorID, fromLeaderID, toLeaderID string) (*domain.Assignment, error)
	RemoveCollaborator(ctx context.Context, companyID, leaderID, collaboratorID string) error
	// DeleteTeamLeader removes the leader and returns the released collaborator ids.
	DeleteTeamLeader(ctx context.Context, companyID, leaderID string) ([]string, error)
}
