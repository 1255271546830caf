package team

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/repository"
	"github.com/skybtp/crewboard/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RosterEvent
}

func (r *recordingPublisher) Publish(event domain.RosterEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T, capacity int) (Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, store, pub, capacity, log), store, pub
}

func seedUser(t *testing.T, store *memory.Store, id, company, role string) {
	t.Helper()
	err := store.CreateUser(context.Background(), &domain.User{
		ID:        id,
		Email:     id + "@example.com",
		FirstName: id,
		LastName:  "Test",
		Role:      role,
		CompanyID: company,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func rosterSize(stats []domain.TeamLeaderStats, leaderID string) int {
	for _, st := range stats {
		if st.ID == leaderID {
			return st.Count()
		}
	}
	return -1
}

func TestCreateLeaderDefaults(t *testing.T) {
	svc, _, pub := newTestService(t, 10)

	leader, err := svc.CreateLeader(context.Background(), "c1", CreateLeaderInput{FirstName: " Bob "})
	if err != nil {
		t.Fatalf("CreateLeader: %v", err)
	}
	if leader.FirstName != "Bob" || leader.Color != DefaultColor || leader.Capacity != 10 {
		t.Fatalf("unexpected leader: %+v", leader)
	}
	if got := pub.types(); len(got) != 1 || got[0] != domain.EventLeaderCreated {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestCreateLeaderRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t, 10)
	if _, err := svc.CreateLeader(context.Background(), "c1", CreateLeaderInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateLeaderFromLinkedUser(t *testing.T) {
	svc, store, _ := newTestService(t, 10)
	seedUser(t, store, "u-lead", "c1", domain.RoleTechnician)

	leader, err := svc.CreateLeader(context.Background(), "c1", CreateLeaderInput{UserID: "u-lead"})
	if err != nil {
		t.Fatalf("CreateLeader: %v", err)
	}
	if leader.UserID == nil || *leader.UserID != "u-lead" || leader.FirstName != "u-lead" {
		t.Fatalf("expected names copied from user, got %+v", leader)
	}
}

func TestAssignRejectsFullRoster(t *testing.T) {
	svc, store, _ := newTestService(t, 2)
	ctx := context.Background()
	leader, err := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "Bob"})
	if err != nil {
		t.Fatalf("CreateLeader: %v", err)
	}
	for i := 0; i < 3; i++ {
		seedUser(t, store, fmt.Sprintf("u%d", i), "c1", domain.RoleTechnician)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Assign(ctx, "c1", leader.ID, fmt.Sprintf("u%d", i), ""); err != nil {
			t.Fatalf("assign u%d: %v", i, err)
		}
	}

	_, err = svc.Assign(ctx, "c1", leader.ID, "u2", "")
	if !errors.Is(err, ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull, got %v", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) || capErr.Error() != "Maximum 2 collaborators per team leader" {
		t.Fatalf("unexpected capacity error: %v", err)
	}
}

func TestAssignRejectsSecondRoster(t *testing.T) {
	svc, store, _ := newTestService(t, 10)
	ctx := context.Background()
	a, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	b, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "B"})
	seedUser(t, store, "u1", "c1", domain.RoleBureau)

	if _, err := svc.Assign(ctx, "c1", a.ID, "u1", "first"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Assign(ctx, "c1", b.ID, "u1", ""); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestAssignChecksCompanyAndEligibility(t *testing.T) {
	svc, store, _ := newTestService(t, 10)
	ctx := context.Background()
	leader, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	seedUser(t, store, "foreign", "c2", domain.RoleTechnician)
	seedUser(t, store, "client", "c1", "CLIENT")

	if _, err := svc.Assign(ctx, "c1", leader.ID, "foreign", ""); !errors.Is(err, ErrCrossCompany) {
		t.Fatalf("expected ErrCrossCompany, got %v", err)
	}
	if _, err := svc.Assign(ctx, "c1", leader.ID, "client", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Assign(ctx, "c1", leader.ID, "missing", ""); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Assign(ctx, "c2", leader.ID, "foreign", ""); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected leader of other company to be missing, got %v", err)
	}
}

func TestConcurrentAssignsNeverExceedCapacity(t *testing.T) {
	const capacity = 3
	svc, store, _ := newTestService(t, capacity)
	ctx := context.Background()
	leader, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	for i := 0; i < 12; i++ {
		seedUser(t, store, fmt.Sprintf("u%02d", i), "c1", domain.RoleTechnician)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Assign(ctx, "c1", leader.ID, id, "")
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrRosterFull) {
				t.Errorf("unexpected error for %s: %v", id, err)
			}
		}(fmt.Sprintf("u%02d", i))
	}
	wg.Wait()

	if success != capacity {
		t.Fatalf("expected %d successful assigns, got %d", capacity, success)
	}
	stats, err := svc.ListStats(ctx, "c1")
	if err != nil {
		t.Fatalf("ListStats: %v", err)
	}
	if stats[0].Count() != capacity {
		t.Fatalf("expected roster of %d, got %d", capacity, stats[0].Count())
	}
}

func TestReassignMovesCollaborator(t *testing.T) {
	svc, store, pub := newTestService(t, 10)
	ctx := context.Background()
	a, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	b, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "B"})
	seedUser(t, store, "u1", "c1", domain.RoleTechnician)
	if _, err := svc.Assign(ctx, "c1", a.ID, "u1", "keep"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	moved, err := svc.Reassign(ctx, "c1", "u1", a.ID, b.ID)
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if moved.TeamLeaderID != b.ID || moved.Notes != "keep" {
		t.Fatalf("unexpected assignment: %+v", moved)
	}
	stats, _ := svc.ListStats(ctx, "c1")
	if rosterSize(stats, a.ID) != 0 || rosterSize(stats, b.ID) != 1 {
		t.Fatalf("expected u1 only in B, got %d/%d", rosterSize(stats, a.ID), rosterSize(stats, b.ID))
	}
	types := pub.types()
	if types[len(types)-1] != domain.EventReassigned {
		t.Fatalf("expected reassigned event last, got %v", types)
	}
}

func TestReassignRejectsSameLeader(t *testing.T) {
	svc, _, _ := newTestService(t, 10)
	if _, err := svc.Reassign(context.Background(), "c1", "u1", "a", "a"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReassignIntoFullRoster(t *testing.T) {
	svc, store, _ := newTestService(t, 1)
	ctx := context.Background()
	a, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	b, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "B"})
	seedUser(t, store, "u1", "c1", domain.RoleTechnician)
	seedUser(t, store, "u2", "c1", domain.RoleTechnician)
	_, _ = svc.Assign(ctx, "c1", a.ID, "u1", "")
	_, _ = svc.Assign(ctx, "c1", b.ID, "u2", "")

	if _, err := svc.Reassign(ctx, "c1", "u1", a.ID, b.ID); !errors.Is(err, ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull, got %v", err)
	}
	stats, _ := svc.ListStats(ctx, "c1")
	if rosterSize(stats, a.ID) != 1 {
		t.Fatalf("expected u1 to stay with A")
	}
}

func TestDeleteLeaderReleasesRoster(t *testing.T) {
	svc, store, pub := newTestService(t, 10)
	ctx := context.Background()
	leader, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	seedUser(t, store, "u1", "c1", domain.RoleTechnician)
	seedUser(t, store, "u2", "c1", domain.RoleTechnician)
	_, _ = svc.Assign(ctx, "c1", leader.ID, "u1", "")
	_, _ = svc.Assign(ctx, "c1", leader.ID, "u2", "")

	released, err := svc.DeleteLeader(ctx, "c1", leader.ID)
	if err != nil {
		t.Fatalf("DeleteLeader: %v", err)
	}
	if len(released) != 2 {
		t.Fatalf("expected 2 released collaborators, got %v", released)
	}
	stats, _ := svc.ListStats(ctx, "c1")
	if len(stats) != 0 {
		t.Fatalf("expected no leaders, got %d", len(stats))
	}
	if _, err := svc.DeleteLeader(ctx, "c1", leader.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	pub.mu.Lock()
	last := pub.events[len(pub.events)-1]
	pub.mu.Unlock()
	if last.Type != domain.EventLeaderDeleted || len(last.CollaboratorIDs) != 2 {
		t.Fatalf("unexpected delete event: %+v", last)
	}
}

func TestRemoveCollaboratorMissingEdge(t *testing.T) {
	svc, store, _ := newTestService(t, 10)
	ctx := context.Background()
	leader, _ := svc.CreateLeader(ctx, "c1", CreateLeaderInput{FirstName: "A"})
	seedUser(t, store, "u1", "c1", domain.RoleTechnician)

	if err := svc.RemoveCollaborator(ctx, "c1", leader.ID, "u1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, _ = svc.Assign(ctx, "c1", leader.ID, "u1", "")
	if err := svc.RemoveCollaborator(ctx, "c1", leader.ID, "u1"); err != nil {
		t.Fatalf("RemoveCollaborator: %v", err)
	}
}
