// Package roster keeps a local view of team leaders, their rosters and the
// unassigned pool, and reconciles every change with the remote authority.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/skybtp/crewboard/pkg/api/client"
	"github.com/skybtp/crewboard/pkg/logger"
)

// Authority is the remote source of truth. *client.Client satisfies it.
type Authority interface {
	ListTeamLeaderStats(ctx context.Context, token string) ([]client.TeamLeader, error)
	ListUsers(ctx context.Context, token string) ([]client.User, error)
	Assign(ctx context.Context, token string, input client.AssignInput) (client.Assignment, error)
	Reassign(ctx context.Context, token string, input client.ReassignInput) (client.Assignment, error)
	RemoveCollaborator(ctx context.Context, token, teamLeaderID, collaboratorID string) error
	DeleteTeamLeader(ctx context.Context, token, teamLeaderID string) (client.DeleteTeamLeaderResponse, error)
}

var _ Authority = (*client.Client)(nil)

// Session carries the credentials attached to every remote call.
type Session struct {
	Token string
}

// Prompt describes a destructive change awaiting acknowledgment.
type Prompt struct {
	Action       string
	TeamLeader   TeamLeader
	Collaborator *Collaborator
	Message      string
}

// Prompt actions.
const (
	ActionUnassign         = "unassign"
	ActionDeleteTeamLeader = "delete_team_leader"
)

// Confirmer gates destructive changes.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt Prompt) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt) bool {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, Prompt) bool { return true })

var neverConfirm Confirmer = ConfirmFunc(func(context.Context, Prompt) bool { return false })

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the board logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithConfirmer sets the acknowledgment gate. Without one every destructive
// change is declined.
func WithConfirmer(c Confirmer) Option {
	return func(b *Board) {
		if c != nil {
			b.confirmer = c
		}
	}
}

// WithEligibility overrides which users may sit in the unassigned pool.
func WithEligibility(fn func(Collaborator) bool) Option {
	return func(b *Board) {
		if fn != nil {
			b.eligible = fn
		}
	}
}

// WithCapacity sets the roster limit used when the authority reports none.
func WithCapacity(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithOptimistic applies changes before the authority answers and rolls them
// back on rejection.
func WithOptimistic(enabled bool) Option {
	return func(b *Board) {
		b.optimistic = enabled
	}
}

// WithListener registers a callback invoked with a snapshot after every
// committed change.
func WithListener(fn func(State)) Option {
	return func(b *Board) {
		b.listener = fn
	}
}

// Board is the assignment reconciler. It is safe for concurrent use; remote
// calls never run under the lock.
type Board struct {
	auth       Authority
	session    Session
	logger     *slog.Logger
	confirmer  Confirmer
	eligible   func(Collaborator) bool
	capacity   int
	optimistic bool
	listener   func(State)

	mu       sync.Mutex
	state    State
	busy     map[string]struct{}
	deleting map[string]struct{}
	pending  map[string]int

	// A Load replaces state with a fetch that may predate changes made while
	// it ran. applied holds optimistic changes still awaiting an answer and
	// journal the changes acknowledged while any Load was in flight; both are
	// replayed over the fetched state.
	seq     uint64
	applied map[uint64]change
	loads   int
	journal []change
}

// New returns an empty board. Call Load before issuing changes.
func New(auth Authority, session Session, opts ...Option) *Board {
	b := &Board{
		auth:      auth,
		session:   session,
		logger:    logger.Discard(),
		confirmer: neverConfirm,
		eligible:  DefaultEligible,
		capacity:  DefaultCapacity,
		state:     State{TeamLeaders: []TeamLeader{}, Unassigned: []Collaborator{}},
		busy:      make(map[string]struct{}),
		deleting:  make(map[string]struct{}),
		pending:   make(map[string]int),
		applied:   make(map[uint64]change),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns a deep copy of the current collections.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone()
}

// Load fetches leaders and users in parallel and rebuilds both collections.
// On failure the previous state is kept.
func (b *Board) Load(ctx context.Context) (State, error) {
	b.mu.Lock()
	b.loads++
	b.mu.Unlock()

	var (
		wg       sync.WaitGroup
		leaders  []client.TeamLeader
		users    []client.User
		leadErr  error
		usersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		leaders, leadErr = b.auth.ListTeamLeaderStats(ctx, b.session.Token)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = b.auth.ListUsers(ctx, b.session.Token)
	}()
	wg.Wait()

	if err := errors.Join(leadErr, usersErr); err != nil {
		b.mu.Lock()
		b.finishLoadLocked()
		snap := b.state.clone()
		b.mu.Unlock()
		b.logger.Warn("roster load failed", "error", err)
		return snap, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	next := b.build(leaders, users)
	b.mu.Lock()
	for _, ch := range b.journal {
		ch.apply(&next)
	}
	for _, ch := range b.inFlightLocked() {
		ch.apply(&next)
	}
	b.state = next
	b.finishLoadLocked()
	snap := b.state.clone()
	b.mu.Unlock()

	b.logger.Debug("roster loaded", "team_leaders", len(snap.TeamLeaders), "unassigned", len(snap.Unassigned))
	b.notify(&snap)
	return snap, nil
}

func (b *Board) finishLoadLocked() {
	if b.loads--; b.loads <= 0 {
		b.loads = 0
		b.journal = nil
	}
}

// inFlightLocked returns the optimistic changes awaiting an answer in the
// order they were applied.
func (b *Board) inFlightLocked() []change {
	out := make([]change, 0, len(b.applied))
	for _, ch := range b.applied {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (b *Board) build(leaders []client.TeamLeader, users []client.User) State {
	known := make(map[string]Collaborator, len(users))
	for _, u := range users {
		known[u.ID] = fromUser(u)
	}

	placed := make(map[string]string)
	state := State{
		TeamLeaders: make([]TeamLeader, 0, len(leaders)),
		Unassigned:  make([]Collaborator, 0),
	}
	for _, tl := range leaders {
		leader := TeamLeader{
			ID:        tl.ID,
			FirstName: tl.FirstName,
			LastName:  tl.LastName,
			Color:     tl.Color,
			Capacity:  tl.Capacity,
			Roster:    make([]Collaborator, 0, len(tl.Collaborators)),
		}
		if leader.Capacity <= 0 {
			leader.Capacity = b.capacity
		}
		for _, u := range tl.Collaborators {
			if owner, dup := placed[u.ID]; dup {
				b.logger.Warn("collaborator reported in two rosters", "collaborator_id", u.ID, "kept", owner, "dropped", tl.ID)
				continue
			}
			placed[u.ID] = tl.ID
			c, ok := known[u.ID]
			if !ok {
				c = fromUser(u)
			}
			leader.Roster = append(leader.Roster, c)
		}
		state.TeamLeaders = append(state.TeamLeaders, leader)
	}
	for _, u := range users {
		if _, ok := placed[u.ID]; ok {
			continue
		}
		c := known[u.ID]
		if !b.eligible(c) {
			continue
		}
		placed[u.ID] = ""
		state.Unassigned = append(state.Unassigned, c)
	}
	return state
}

// change is one reconciled mutation, prepared under the lock.
type change struct {
	seq       uint64
	op        string
	collabs   []string
	leaders   []string
	target    string
	exclusive string
	prompt    *Prompt
	apply     func(*State)
	undo      func(*State)
}

// Assign places an unassigned collaborator on the leader's roster.
func (b *Board) Assign(ctx context.Context, collaboratorID, teamLeaderID string) error {
	return b.commit(ctx, func(s *State) (change, error) {
		if s.leaderIndex(teamLeaderID) < 0 {
			return change{}, fmt.Errorf("team leader %s: %w", teamLeaderID, ErrNotFound)
		}
		c, loc, ok := s.find(collaboratorID)
		if !ok {
			return change{}, fmt.Errorf("collaborator %s: %w", collaboratorID, ErrNotFound)
		}
		if loc >= 0 {
			return change{}, fmt.Errorf("collaborator %s on team %s: %w", collaboratorID, s.TeamLeaders[loc].ID, ErrAlreadyAssigned)
		}
		return change{
			op:      "assign",
			collabs: []string{collaboratorID},
			leaders: []string{teamLeaderID},
			target:  teamLeaderID,
			apply:   func(s *State) { s.move(c, teamLeaderID) },
			undo:    func(s *State) { s.move(c, "") },
		}, nil
	}, func(ctx context.Context) error {
		_, err := b.auth.Assign(ctx, b.session.Token, client.AssignInput{
			TeamLeaderID:   teamLeaderID,
			CollaboratorID: collaboratorID,
		})
		return err
	})
}

// Unassign returns a collaborator to the pool once the confirmer agrees.
func (b *Board) Unassign(ctx context.Context, teamLeaderID, collaboratorID string) error {
	return b.commit(ctx, func(s *State) (change, error) {
		i := s.leaderIndex(teamLeaderID)
		if i < 0 {
			return change{}, fmt.Errorf("team leader %s: %w", teamLeaderID, ErrNotFound)
		}
		leader := s.TeamLeaders[i]
		j := indexOf(leader.Roster, collaboratorID)
		if j < 0 {
			return change{}, fmt.Errorf("collaborator %s not on team %s: %w", collaboratorID, teamLeaderID, ErrNotFound)
		}
		c := leader.Roster[j]
		return change{
			op:      "unassign",
			collabs: []string{collaboratorID},
			leaders: []string{teamLeaderID},
			prompt: &Prompt{
				Action:       ActionUnassign,
				TeamLeader:   cloneLeader(leader),
				Collaborator: &c,
				Message:      fmt.Sprintf("Remove %s from the team of %s?", c.Name(), leader.Name()),
			},
			apply: func(s *State) { s.move(c, "") },
			undo:  func(s *State) { s.move(c, teamLeaderID) },
		}, nil
	}, func(ctx context.Context) error {
		return b.auth.RemoveCollaborator(ctx, b.session.Token, teamLeaderID, collaboratorID)
	})
}

// Reassign moves a collaborator between two rosters in one remote call.
func (b *Board) Reassign(ctx context.Context, collaboratorID, fromLeaderID, toLeaderID string) error {
	if fromLeaderID == toLeaderID {
		b.mu.Lock()
		defer b.mu.Unlock()
		i := b.state.leaderIndex(fromLeaderID)
		if i < 0 {
			return fmt.Errorf("team leader %s: %w", fromLeaderID, ErrNotFound)
		}
		if indexOf(b.state.TeamLeaders[i].Roster, collaboratorID) < 0 {
			return fmt.Errorf("collaborator %s not on team %s: %w", collaboratorID, fromLeaderID, ErrNotFound)
		}
		return nil
	}
	return b.commit(ctx, func(s *State) (change, error) {
		from := s.leaderIndex(fromLeaderID)
		if from < 0 {
			return change{}, fmt.Errorf("team leader %s: %w", fromLeaderID, ErrNotFound)
		}
		if s.leaderIndex(toLeaderID) < 0 {
			return change{}, fmt.Errorf("team leader %s: %w", toLeaderID, ErrNotFound)
		}
		j := indexOf(s.TeamLeaders[from].Roster, collaboratorID)
		if j < 0 {
			return change{}, fmt.Errorf("collaborator %s not on team %s: %w", collaboratorID, fromLeaderID, ErrNotFound)
		}
		c := s.TeamLeaders[from].Roster[j]
		return change{
			op:      "reassign",
			collabs: []string{collaboratorID},
			leaders: []string{fromLeaderID, toLeaderID},
			target:  toLeaderID,
			apply:   func(s *State) { s.move(c, toLeaderID) },
			undo:    func(s *State) { s.move(c, fromLeaderID) },
		}, nil
	}, func(ctx context.Context) error {
		_, err := b.auth.Reassign(ctx, b.session.Token, client.ReassignInput{
			CollaboratorID:   collaboratorID,
			FromTeamLeaderID: fromLeaderID,
			ToTeamLeaderID:   toLeaderID,
		})
		return err
	})
}

// DeleteTeamLeader removes a leader once the confirmer agrees. Its whole
// roster joins the pool in a single update.
func (b *Board) DeleteTeamLeader(ctx context.Context, teamLeaderID string) error {
	return b.commit(ctx, func(s *State) (change, error) {
		i := s.leaderIndex(teamLeaderID)
		if i < 0 {
			return change{}, fmt.Errorf("team leader %s: %w", teamLeaderID, ErrNotFound)
		}
		leader := cloneLeader(s.TeamLeaders[i])
		members := make([]string, 0, len(leader.Roster))
		for _, c := range leader.Roster {
			members = append(members, c.ID)
		}
		pos := i
		return change{
			op:        "delete_team_leader",
			collabs:   members,
			exclusive: teamLeaderID,
			prompt: &Prompt{
				Action:     ActionDeleteTeamLeader,
				TeamLeader: leader,
				Message:    fmt.Sprintf("Delete team leader %s? %d collaborator(s) will become unassigned.", leader.Name(), leader.Count()),
			},
			apply: func(s *State) {
				if _, at, ok := s.removeLeader(teamLeaderID); ok {
					pos = at
				}
			},
			undo: func(s *State) { s.restoreLeader(leader, pos) },
		}, nil
	}, func(ctx context.Context) error {
		_, err := b.auth.DeleteTeamLeader(ctx, b.session.Token, teamLeaderID)
		return err
	})
}

// RequestAssignment is the single entry point for drag-and-drop and
// tap-to-assign. It assigns from the pool, reassigns from another roster and
// does nothing when the collaborator already sits on the target.
func (b *Board) RequestAssignment(ctx context.Context, collaboratorID, targetLeaderID string) error {
	b.mu.Lock()
	from, ok := b.state.Locate(collaboratorID)
	b.mu.Unlock()

	switch {
	case !ok:
		return fmt.Errorf("collaborator %s: %w", collaboratorID, ErrNotFound)
	case from == targetLeaderID:
		return nil
	case from == "":
		return b.Assign(ctx, collaboratorID, targetLeaderID)
	default:
		return b.Reassign(ctx, collaboratorID, from, targetLeaderID)
	}
}

func (b *Board) commit(ctx context.Context, prepare func(*State) (change, error), call func(context.Context) error) error {
	b.mu.Lock()
	ch, err := prepare(&b.state)
	if err == nil {
		err = b.claimLocked(&ch)
	}
	b.mu.Unlock()
	if err != nil {
		b.logger.Debug("roster change refused", "op", ch.op, "error", err)
		return err
	}

	if ch.prompt != nil && !b.confirmer.Confirm(ctx, *ch.prompt) {
		b.mu.Lock()
		b.releaseLocked(ch, false)
		b.mu.Unlock()
		return ErrDeclined
	}

	if b.optimistic {
		b.mu.Lock()
		ch.apply(&b.state)
		b.applied[ch.seq] = ch
		b.settleLocked(ch)
		snap := b.state.clone()
		b.mu.Unlock()
		b.notify(&snap)
	}

	callErr := call(ctx)

	var snap *State
	b.mu.Lock()
	b.releaseLocked(ch, b.optimistic)
	delete(b.applied, ch.seq)
	if callErr == nil && b.loads > 0 {
		b.journal = append(b.journal, ch)
	}
	switch {
	case callErr != nil && b.optimistic:
		ch.undo(&b.state)
		s := b.state.clone()
		snap = &s
	case callErr == nil && !b.optimistic:
		ch.apply(&b.state)
		s := b.state.clone()
		snap = &s
	}
	b.mu.Unlock()
	b.notify(snap)

	if callErr != nil {
		err := mapRemote(ch.op, callErr)
		b.logger.Warn("roster change rejected", "op", ch.op, "error", err)
		return err
	}
	b.logger.Info("roster change committed", "op", ch.op, "collaborators", ch.collabs)
	return nil
}

func (b *Board) claimLocked(ch *change) error {
	for _, id := range ch.collabs {
		if _, ok := b.busy[id]; ok {
			return fmt.Errorf("collaborator %s: %w", id, ErrBusy)
		}
	}
	for _, id := range ch.leaders {
		if _, ok := b.deleting[id]; ok {
			return fmt.Errorf("team leader %s is being deleted: %w", id, ErrBusy)
		}
	}
	if ch.exclusive != "" {
		if _, ok := b.deleting[ch.exclusive]; ok || b.pending[ch.exclusive] > 0 {
			return fmt.Errorf("team leader %s: %w", ch.exclusive, ErrBusy)
		}
	}
	if ch.target != "" {
		leader := b.state.TeamLeaders[b.state.leaderIndex(ch.target)]
		if leader.Count() >= leader.Capacity {
			return &CapacityError{TeamLeaderID: leader.ID, Capacity: leader.Capacity}
		}
		if leader.Count()+b.pending[ch.target] >= leader.Capacity {
			return fmt.Errorf("team leader %s has changes in flight: %w", leader.ID, ErrBusy)
		}
	}

	b.seq++
	ch.seq = b.seq
	for _, id := range ch.collabs {
		b.busy[id] = struct{}{}
	}
	if ch.exclusive != "" {
		b.deleting[ch.exclusive] = struct{}{}
	}
	if ch.target != "" {
		b.pending[ch.target]++
	}
	return nil
}

// settleLocked stops counting an optimistically applied addition as pending
// since the roster already holds it.
func (b *Board) settleLocked(ch change) {
	if ch.target == "" {
		return
	}
	if b.pending[ch.target]--; b.pending[ch.target] <= 0 {
		delete(b.pending, ch.target)
	}
}

func (b *Board) releaseLocked(ch change, settled bool) {
	for _, id := range ch.collabs {
		delete(b.busy, id)
	}
	if ch.exclusive != "" {
		delete(b.deleting, ch.exclusive)
	}
	if !settled {
		b.settleLocked(ch)
	}
}

func (b *Board) notify(snap *State) {
	if snap == nil || b.listener == nil {
		return
	}
	b.listener(*snap)
}

func cloneLeader(l TeamLeader) TeamLeader {
	l.Roster = append([]Collaborator(nil), l.Roster...)
	return l
}
