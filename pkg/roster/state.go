package roster

import "github.com/skybtp/crewboard/pkg/api/client"

// DefaultCapacity is the roster limit used when the authority reports none.
const DefaultCapacity = 10

// Role tags a collaborator may carry.
const (
	RoleAdmin      = "ADMIN"
	RoleBureau     = "BUREAU"
	RoleTechnician = "TECHNICIEN"
)

// Collaborator is the local projection of a company user.
type Collaborator struct {
	ID        string
	FirstName string
	LastName  string
	Role      string
	Email     string
	Phone     string
	CompanyID string
}

// Name returns the display name.
func (c Collaborator) Name() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// TeamLeader is a leader with its roster.
type TeamLeader struct {
	ID        string
	FirstName string
	LastName  string
	Color     string
	Capacity  int
	Roster    []Collaborator
}

// Name returns the display name.
func (l TeamLeader) Name() string {
	return Collaborator{FirstName: l.FirstName, LastName: l.LastName}.Name()
}

// Count returns the roster size.
func (l TeamLeader) Count() int {
	return len(l.Roster)
}

// Full reports whether the roster reached capacity. The check is advisory;
// the authority decides.
func (l TeamLeader) Full() bool {
	return l.Count() >= l.Capacity
}

// Has reports whether the collaborator is on the roster.
func (l TeamLeader) Has(collaboratorID string) bool {
	return indexOf(l.Roster, collaboratorID) >= 0
}

// State is a snapshot of both collections.
type State struct {
	TeamLeaders []TeamLeader
	Unassigned  []Collaborator
}

// Leader returns the team leader with the given id.
func (s State) Leader(id string) (TeamLeader, bool) {
	for _, l := range s.TeamLeaders {
		if l.ID == id {
			return l, true
		}
	}
	return TeamLeader{}, false
}

// Locate returns the id of the leader holding the collaborator. An empty id
// with ok set means the collaborator is in the unassigned pool.
func (s State) Locate(collaboratorID string) (leaderID string, ok bool) {
	for _, l := range s.TeamLeaders {
		if l.Has(collaboratorID) {
			return l.ID, true
		}
	}
	if indexOf(s.Unassigned, collaboratorID) >= 0 {
		return "", true
	}
	return "", false
}

func (s State) clone() State {
	out := State{
		TeamLeaders: make([]TeamLeader, len(s.TeamLeaders)),
		Unassigned:  append([]Collaborator(nil), s.Unassigned...),
	}
	for i, l := range s.TeamLeaders {
		l.Roster = append([]Collaborator(nil), l.Roster...)
		out.TeamLeaders[i] = l
	}
	if out.Unassigned == nil {
		out.Unassigned = []Collaborator{}
	}
	return out
}

func (s *State) leaderIndex(id string) int {
	for i, l := range s.TeamLeaders {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// find returns the collaborator and its location: a leader index, or -1 for
// the pool. ok is false when the collaborator is unknown.
func (s *State) find(collaboratorID string) (Collaborator, int, bool) {
	for i, l := range s.TeamLeaders {
		if j := indexOf(l.Roster, collaboratorID); j >= 0 {
			return l.Roster[j], i, true
		}
	}
	if j := indexOf(s.Unassigned, collaboratorID); j >= 0 {
		return s.Unassigned[j], -1, true
	}
	return Collaborator{}, -1, false
}

// move detaches the collaborator from wherever it sits and appends it to the
// roster of toLeaderID, or to the pool when toLeaderID is empty or unknown.
func (s *State) move(c Collaborator, toLeaderID string) {
	if _, loc, ok := s.find(c.ID); ok && loc >= 0 && s.TeamLeaders[loc].ID == toLeaderID {
		return
	}
	for i := range s.TeamLeaders {
		s.TeamLeaders[i].Roster = without(s.TeamLeaders[i].Roster, c.ID)
	}
	s.Unassigned = without(s.Unassigned, c.ID)
	if i := s.leaderIndex(toLeaderID); i >= 0 {
		s.TeamLeaders[i].Roster = append(s.TeamLeaders[i].Roster, c)
		return
	}
	s.Unassigned = append(s.Unassigned, c)
}

// removeLeader drops the leader and returns its roster to the pool in one step.
func (s *State) removeLeader(id string) (TeamLeader, int, bool) {
	i := s.leaderIndex(id)
	if i < 0 {
		return TeamLeader{}, -1, false
	}
	leader := s.TeamLeaders[i]
	s.TeamLeaders = append(s.TeamLeaders[:i:i], s.TeamLeaders[i+1:]...)
	for _, c := range leader.Roster {
		s.Unassigned = append(without(s.Unassigned, c.ID), c)
	}
	return leader, i, true
}

// restoreLeader puts a removed leader back at index pos and pulls its roster
// out of the pool.
func (s *State) restoreLeader(leader TeamLeader, pos int) {
	if s.leaderIndex(leader.ID) >= 0 {
		return
	}
	for _, c := range leader.Roster {
		s.Unassigned = without(s.Unassigned, c.ID)
	}
	if pos < 0 || pos > len(s.TeamLeaders) {
		pos = len(s.TeamLeaders)
	}
	s.TeamLeaders = append(s.TeamLeaders[:pos:pos], append([]TeamLeader{leader}, s.TeamLeaders[pos:]...)...)
}

func indexOf(list []Collaborator, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func without(list []Collaborator, id string) []Collaborator {
	i := indexOf(list, id)
	if i < 0 {
		return list
	}
	out := make([]Collaborator, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func fromUser(u client.User) Collaborator {
	return Collaborator{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Email:     u.Email,
		Phone:     u.Phone,
		CompanyID: u.CompanyID,
	}
}

// DefaultEligible admits ADMIN, BUREAU and TECHNICIEN accounts attached to a
// company.
func DefaultEligible(c Collaborator) bool {
	switch c.Role {
	case RoleAdmin, RoleBureau, RoleTechnician:
		return c.CompanyID != ""
	}
	return false
}
