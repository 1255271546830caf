package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/repository"
)

// DefaultColor is used for team leaders created without a display color.
const DefaultColor = "#3B82F6"

var (
	// ErrInvalidInput marks malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCrossCompany indicates the collaborator belongs to another company.
	ErrCrossCompany = errors.New("collaborator belongs to another company")
	// ErrAlreadyAssigned indicates the collaborator already sits on a roster.
	ErrAlreadyAssigned = errors.New("collaborator already assigned to a team leader")
	// ErrRosterFull is matched by every *CapacityError.
	ErrRosterFull = errors.New("roster full")
)

// CapacityError reports a rejected assignment to a full roster.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Maximum %d collaborators per team leader", e.Capacity)
}

// Is lets errors.Is match ErrRosterFull.
func (e *CapacityError) Is(target error) bool {
	return target == ErrRosterFull
}

// Publisher receives committed roster changes.
type Publisher interface {
	Publish(event domain.RosterEvent)
}

// Service handles team leader and roster workflows.
type Service struct {
	repo     repository.TeamRepository
	users    repository.UserRepository
	events   Publisher
	capacity int
	logger   *slog.Logger
}

// New constructs a Service. capacity is applied to leaders created without one.
func New(repo repository.TeamRepository, users repository.UserRepository, events Publisher, capacity int, logger *slog.Logger) Service {
	if capacity <= 0 {
		capacity = 10
	}
	return Service{repo: repo, users: users, events: events, capacity: capacity, logger: logger}
}

// CreateLeaderInput describes a new team leader.
type CreateLeaderInput struct {
	FirstName string
	LastName  string
	Color     string
	UserID    string
	Capacity  int
}

// ListStats returns the company's leaders with their rosters.
func (s Service) ListStats(ctx context.Context, companyID string) ([]domain.TeamLeaderStats, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	return s.repo.ListTeamLeaderStats(ctx, companyID)
}

// ListUsers returns every account of the company.
func (s Service) ListUsers(ctx context.Context, companyID string) ([]domain.User, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	return s.users.ListUsersByCompany(ctx, companyID)
}

// CreateLeader registers a team leader. When linked to a user, missing names
// are taken from the account.
func (s Service) CreateLeader(ctx context.Context, companyID string, input CreateLeaderInput) (*domain.TeamLeader, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	if input.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidInput)
	}
	leader := &domain.TeamLeader{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Color:     strings.TrimSpace(input.Color),
		Capacity:  input.Capacity,
		CreatedAt: time.Now().UTC(),
	}
	if userID := strings.TrimSpace(input.UserID); userID != "" {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user.CompanyID != companyID {
			return nil, ErrCrossCompany
		}
		leader.UserID = &user.ID
		if leader.FirstName == "" {
			leader.FirstName = user.FirstName
		}
		if leader.LastName == "" {
			leader.LastName = user.LastName
		}
	}
	if leader.FirstName == "" {
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	if leader.Color == "" {
		leader.Color = DefaultColor
	}
	if leader.Capacity == 0 {
		leader.Capacity = s.capacity
	}
	if err := s.repo.CreateTeamLeader(ctx, leader); err != nil {
		return nil, err
	}
	s.logger.Info("team leader created", "team_leader_id", leader.ID, "company_id", companyID)
	s.publish(domain.RosterEvent{Type: domain.EventLeaderCreated, CompanyID: companyID, TeamLeaderID: leader.ID})
	return leader, nil
}

// Assign places a collaborator on a roster. The capacity check and insert run
// atomically in the repository.
func (s Service) Assign(ctx context.Context, companyID, leaderID, collaboratorID, notes string) (*domain.Assignment, error) {
	if strings.TrimSpace(leaderID) == "" || strings.TrimSpace(collaboratorID) == "" {
		return nil, fmt.Errorf("%w: team_leader_id and collaborator_id are required", ErrInvalidInput)
	}
	leader, err := s.repo.GetTeamLeader(ctx, companyID, leaderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCollaborator(ctx, companyID, collaboratorID); err != nil {
		return nil, err
	}

	assignment := &domain.Assignment{
		TeamLeaderID:   leader.ID,
		CollaboratorID: collaboratorID,
		Notes:          strings.TrimSpace(notes),
		AssignedAt:     time.Now().UTC(),
	}
	if err := s.repo.AssignCollaborator(ctx, companyID, assignment); err != nil {
		return nil, s.mapRosterError(err, leader.Capacity)
	}
	s.logger.Info("collaborator assigned", "team_leader_id", leader.ID, "collaborator_id", collaboratorID)
	s.publish(domain.RosterEvent{
		Type:            domain.EventAssigned,
		CompanyID:       companyID,
		TeamLeaderID:    leader.ID,
		CollaboratorIDs: []string{collaboratorID},
	})
	return assignment, nil
}

// Reassign moves a collaborator between two rosters in one transaction.
func (s Service) Reassign(ctx context.Context, companyID, collaboratorID, fromLeaderID, toLeaderID string) (*domain.Assignment, error) {
	if strings.TrimSpace(collaboratorID) == "" || strings.TrimSpace(fromLeaderID) == "" || strings.TrimSpace(toLeaderID) == "" {
		return nil, fmt.Errorf("%w: collaborator_id, from_team_leader_id and to_team_leader_id are required", ErrInvalidInput)
	}
	if fromLeaderID == toLeaderID {
		return nil, fmt.Errorf("%w: source and target team leader are the same", ErrInvalidInput)
	}
	target, err := s.repo.GetTeamLeader(ctx, companyID, toLeaderID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.repo.ReassignCollaborator(ctx, companyID, collaboratorID, fromLeaderID, toLeaderID)
	if err != nil {
		return nil, s.mapRosterError(err, target.Capacity)
	}
	s.logger.Info("collaborator reassigned", "from_team_leader_id", fromLeaderID, "team_leader_id", toLeaderID, "collaborator_id", collaboratorID)
	s.publish(domain.RosterEvent{
		Type:             domain.EventReassigned,
		CompanyID:        companyID,
		TeamLeaderID:     toLeaderID,
		FromTeamLeaderID: fromLeaderID,
		CollaboratorIDs:  []string{collaboratorID},
	})
	return assignment, nil
}

// RemoveCollaborator drops a collaborator from a roster.
func (s Service) RemoveCollaborator(ctx context.Context, companyID, leaderID, collaboratorID string) error {
	if strings.TrimSpace(leaderID) == "" || strings.TrimSpace(collaboratorID) == "" {
		return fmt.Errorf("%w: team leader and collaborator are required", ErrInvalidInput)
	}
	if err := s.repo.RemoveCollaborator(ctx, companyID, leaderID, collaboratorID); err != nil {
		return err
	}
	s.logger.Info("collaborator unassigned", "team_leader_id", leaderID, "collaborator_id", collaboratorID)
	s.publish(domain.RosterEvent{
		Type:            domain.EventUnassigned,
		CompanyID:       companyID,
		TeamLeaderID:    leaderID,
		CollaboratorIDs: []string{collaboratorID},
	})
	return nil
}

// DeleteLeader removes a team leader; its roster returns to the pool.
func (s Service) DeleteLeader(ctx context.Context, companyID, leaderID string) ([]string, error) {
	if strings.TrimSpace(leaderID) == "" {
		return nil, fmt.Errorf("%w: team leader is required", ErrInvalidInput)
	}
	released, err := s.repo.DeleteTeamLeader(ctx, companyID, leaderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("team leader deleted", "team_leader_id", leaderID, "released", len(released))
	s.publish(domain.RosterEvent{
		Type:            domain.EventLeaderDeleted,
		CompanyID:       companyID,
		TeamLeaderID:    leaderID,
		CollaboratorIDs: released,
	})
	return released, nil
}

func (s Service) checkCollaborator(ctx context.Context, companyID, collaboratorID string) error {
	user, err := s.users.GetUserByID(ctx, collaboratorID)
	if err != nil {
		return err
	}
	if user.CompanyID != companyID {
		return ErrCrossCompany
	}
	if !user.Eligible() {
		return fmt.Errorf("%w: collaborator role %q cannot join a team", ErrInvalidInput, user.Role)
	}
	return nil
}

func (s Service) mapRosterError(err error, capacity int) error {
	switch {
	case errors.Is(err, repository.ErrRosterFull):
		return &CapacityError{Capacity: capacity}
	case errors.Is(err, repository.ErrAlreadyAssigned):
		return ErrAlreadyAssigned
	case errors.Is(err, repository.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}

func (s Service) publish(event domain.RosterEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	s.events.Publish(event)
}
