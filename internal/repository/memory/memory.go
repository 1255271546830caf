// Package memory provides a process-local implementation of the repository
// interfaces. It is used by tests and by the API when no database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/repository"
)

// Store keeps users, team leaders and roster memberships in maps.
type Store struct {
	mu          sync.Mutex
	users       map[string]domain.User
	emails      map[string]string
	leaders     map[string]domain.TeamLeader
	assignments map[string]domain.Assignment // keyed by collaborator id
}

var (
	_ repository.UserRepository = (*Store)(nil)
	_ repository.TeamRepository = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		emails:      make(map[string]string),
		leaders:     make(map[string]domain.TeamLeader),
		assignments: make(map[string]domain.Assignment),
	}
}

// CreateUser stores a user; emails are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	email := normalizeEmail(user.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := s.emails[email]; ok && email != "" {
		return repository.ErrDuplicate
	}
	stored := *user
	stored.Email = email
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.users[stored.ID] = stored
	if email != "" {
		s.emails[email] = stored.ID
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// ListUsersByCompany returns the company's users sorted by name.
func (s *Store) ListUsersByCompany(_ context.Context, companyID string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0)
	for _, u := range s.users {
		if u.CompanyID == companyID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// CreateTeamLeader stores a leader.
func (s *Store) CreateTeamLeader(_ context.Context, leader *domain.TeamLeader) error {
	if leader == nil || leader.ID == "" || leader.CompanyID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leaders[leader.ID]; ok {
		return repository.ErrDuplicate
	}
	if leader.UserID != nil {
		if _, ok := s.users[*leader.UserID]; !ok {
			return repository.ErrNotFound
		}
	}
	stored := *leader
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.leaders[stored.ID] = stored
	return nil
}

// GetTeamLeader returns the leader when it belongs to companyID.
func (s *Store) GetTeamLeader(_ context.Context, companyID, leaderID string) (*domain.TeamLeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leader, ok := s.leaderLocked(companyID, leaderID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &leader, nil
}

// ListTeamLeaderStats returns leaders ordered by creation with their rosters.
func (s *Store) ListTeamLeaderStats(_ context.Context, companyID string) ([]domain.TeamLeaderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]domain.TeamLeaderStats, 0)
	index := make(map[string]int)
	for _, leader := range s.leaders {
		if leader.CompanyID != companyID {
			continue
		}
		stats = append(stats, domain.TeamLeaderStats{TeamLeader: leader, Collaborators: make([]domain.User, 0)})
	}
	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].CreatedAt.Equal(stats[j].CreatedAt) {
			return stats[i].CreatedAt.Before(stats[j].CreatedAt)
		}
		return stats[i].ID < stats[j].ID
	})
	for i, st := range stats {
		index[st.ID] = i
	}

	members := make([]domain.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		members = append(members, a)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].AssignedAt.Equal(members[j].AssignedAt) {
			return members[i].AssignedAt.Before(members[j].AssignedAt)
		}
		return members[i].CollaboratorID < members[j].CollaboratorID
	})
	for _, a := range members {
		pos, ok := index[a.TeamLeaderID]
		if !ok {
			continue
		}
		if u, ok := s.users[a.CollaboratorID]; ok {
			stats[pos].Collaborators = append(stats[pos].Collaborators, u)
		}
	}
	return stats, nil
}

// AssignCollaborator adds a membership under the store lock.
func (s *Store) AssignCollaborator(_ context.Context, companyID string, assignment *domain.Assignment) error {
	if assignment == nil {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	leader, ok := s.leaderLocked(companyID, assignment.TeamLeaderID)
	if !ok {
		return repository.ErrNotFound
	}
	if u, ok := s.users[assignment.CollaboratorID]; !ok || u.CompanyID != companyID {
		return repository.ErrNotFound
	}
	if _, ok := s.assignments[assignment.CollaboratorID]; ok {
		return repository.ErrAlreadyAssigned
	}
	if s.rosterSizeLocked(leader.ID) >= leader.Capacity {
		return repository.ErrRosterFull
	}
	stored := *assignment
	if stored.AssignedAt.IsZero() {
		stored.AssignedAt = time.Now().UTC()
	}
	s.assignments[stored.CollaboratorID] = stored
	return nil
}

// ReassignCollaborator moves a membership between two leaders of the company.
func (s *Store) ReassignCollaborator(_ context.Context, companyID, collaboratorID, fromLeaderID, toLeaderID string) (*domain.Assignment, error) {
	if fromLeaderID == toLeaderID {
		return nil, repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leaderLocked(companyID, fromLeaderID); !ok {
		return nil, repository.ErrNotFound
	}
	target, ok := s.leaderLocked(companyID, toLeaderID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.rosterSizeLocked(target.ID) >= target.Capacity {
		return nil, repository.ErrRosterFull
	}
	current, ok := s.assignments[collaboratorID]
	if !ok || current.TeamLeaderID != fromLeaderID {
		return nil, repository.ErrNotFound
	}
	current.TeamLeaderID = toLeaderID
	current.AssignedAt = time.Now().UTC()
	s.assignments[collaboratorID] = current
	moved := current
	return &moved, nil
}

// RemoveCollaborator deletes a membership.
func (s *Store) RemoveCollaborator(_ context.Context, companyID, leaderID, collaboratorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leaderLocked(companyID, leaderID); !ok {
		return repository.ErrNotFound
	}
	current, ok := s.assignments[collaboratorID]
	if !ok || current.TeamLeaderID != leaderID {
		return repository.ErrNotFound
	}
	delete(s.assignments, collaboratorID)
	return nil
}

// DeleteTeamLeader removes the leader and its memberships.
func (s *Store) DeleteTeamLeader(_ context.Context, companyID, leaderID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leaderLocked(companyID, leaderID); !ok {
		return nil, repository.ErrNotFound
	}
	released := make([]domain.Assignment, 0)
	for id, a := range s.assignments {
		if a.TeamLeaderID == leaderID {
			released = append(released, a)
			delete(s.assignments, id)
		}
	}
	sort.Slice(released, func(i, j int) bool {
		if !released[i].AssignedAt.Equal(released[j].AssignedAt) {
			return released[i].AssignedAt.Before(released[j].AssignedAt)
		}
		return released[i].CollaboratorID < released[j].CollaboratorID
	})
	ids := make([]string, 0, len(released))
	for _, a := range released {
		ids = append(ids, a.CollaboratorID)
	}
	delete(s.leaders, leaderID)
	return ids, nil
}

func (s *Store) leaderLocked(companyID, leaderID string) (domain.TeamLeader, bool) {
	leader, ok := s.leaders[leaderID]
	if !ok || leader.CompanyID != companyID {
		return domain.TeamLeader{}, false
	}
	return leader, true
}

func (s *Store) rosterSizeLocked(leaderID string) int {
	n := 0
	for _, a := range s.assignments {
		if a.TeamLeaderID == leaderID {
			n++
		}
	}
	return n
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
