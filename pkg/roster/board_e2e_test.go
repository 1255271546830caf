package roster_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpx "github.com/skybtp/crewboard/internal/http"
	"github.com/skybtp/crewboard/internal/repository/memory"
	"github.com/skybtp/crewboard/internal/service/auth"
	"github.com/skybtp/crewboard/internal/service/events"
	"github.com/skybtp/crewboard/internal/service/team"
	"github.com/skybtp/crewboard/internal/ws"
	"github.com/skybtp/crewboard/pkg/api/client"
	"github.com/skybtp/crewboard/pkg/config"
	"github.com/skybtp/crewboard/pkg/logger"
	"github.com/skybtp/crewboard/pkg/roster"
)

type apiFixture struct {
	api   *client.Client
	token string
	users map[string]string
}

func startAPI(t *testing.T) *apiFixture {
	t.Helper()
	log := logger.Discard()
	store := memory.New()
	hub := ws.NewHub()
	cfg := config.APIConfig{JWTSecret: "e2e-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}
	eventSvc := events.New(hub, log)
	router := httpx.NewRouter(log, auth.New(store, log, cfg), team.New(store, store, eventSvc, roster.DefaultCapacity, log), eventSvc, httpx.NewMemoryRateLimiter(), time.Second, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		router.Close()
		hub.Close()
	})

	api, err := client.New(srv.URL)
	require.NoError(t, err)

	ctx := context.Background()
	signup, err := api.Signup(ctx, client.SignupInput{
		Email:       "ada@btp-martin.fr",
		Password:    "Testing123!",
		FirstName:   "Ada",
		LastName:    "Martin",
		CompanyName: "BTP Martin",
	})
	require.NoError(t, err)

	f := &apiFixture{api: api, token: signup.Tokens.AccessToken, users: map[string]string{}}
	for _, name := range []string{"B", "C", "D", "E"} {
		u, err := api.Invite(ctx, f.token, client.InviteInput{
			Email:     name + "@btp-martin.fr",
			Password:  "Testing123!",
			FirstName: name,
			LastName:  "Durand",
		})
		require.NoError(t, err)
		f.users[name] = u.ID
	}
	f.users["Ada"] = signup.User.ID
	return f
}

func (f *apiFixture) leader(t *testing.T, name string, capacity int, members ...string) string {
	t.Helper()
	ctx := context.Background()
	tl, err := f.api.CreateTeamLeader(ctx, f.token, client.CreateTeamLeaderInput{FirstName: name, Capacity: capacity})
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.api.Assign(ctx, f.token, client.AssignInput{TeamLeaderID: tl.ID, CollaboratorID: f.users[m]})
		require.NoError(t, err)
	}
	return tl.ID
}

func (f *apiFixture) names(list []roster.Collaborator) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		for name, id := range f.users {
			if id == c.ID {
				out = append(out, name)
			}
		}
	}
	return out
}

func TestBoardAgainstAPI(t *testing.T) {
	ctx := context.Background()
	f := startAPI(t)
	alice := f.leader(t, "Alice", 0, "B", "C")

	board := roster.New(f.api, roster.Session{Token: f.token}, roster.WithConfirmer(roster.AlwaysConfirm))
	s, err := board.Load(ctx)
	require.NoError(t, err)
	tl, ok := s.Leader(alice)
	require.True(t, ok)
	assert.Equal(t, []string{"B", "C"}, f.names(tl.Roster))
	assert.Equal(t, roster.DefaultCapacity, tl.Capacity)
	assert.ElementsMatch(t, []string{"Ada", "D", "E"}, f.names(s.Unassigned))

	require.NoError(t, board.Assign(ctx, f.users["D"], alice))
	require.NoError(t, board.Unassign(ctx, alice, f.users["B"]))
	tl, _ = board.State().Leader(alice)
	assert.Equal(t, []string{"C", "D"}, f.names(tl.Roster))

	local := board.State()
	remote, err := board.Load(ctx)
	require.NoError(t, err)
	tl, _ = remote.Leader(alice)
	assert.Equal(t, []string{"C", "D"}, f.names(tl.Roster))
	assert.ElementsMatch(t, f.names(local.Unassigned), f.names(remote.Unassigned))

	require.NoError(t, board.DeleteTeamLeader(ctx, alice))
	s = board.State()
	assert.Empty(t, s.TeamLeaders)
	assert.ElementsMatch(t, []string{"Ada", "B", "C", "D", "E"}, f.names(s.Unassigned))

	remote, err = board.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, remote.TeamLeaders)
	assert.Len(t, remote.Unassigned, 5)
}

func TestBoardReassignAgainstAPI(t *testing.T) {
	ctx := context.Background()
	f := startAPI(t)
	alice := f.leader(t, "Alice", 0, "B")
	bob := f.leader(t, "Bob", 0)

	board := roster.New(f.api, roster.Session{Token: f.token})
	_, err := board.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, board.RequestAssignment(ctx, f.users["B"], bob))
	require.NoError(t, board.RequestAssignment(ctx, f.users["E"], bob))

	remote, err := board.Load(ctx)
	require.NoError(t, err)
	tl, _ := remote.Leader(alice)
	assert.Empty(t, tl.Roster)
	tl, _ = remote.Leader(bob)
	assert.Equal(t, []string{"B", "E"}, f.names(tl.Roster))
}

func TestStaleBoardSeesRemoteCapacity(t *testing.T) {
	ctx := context.Background()
	f := startAPI(t)
	tiny := f.leader(t, "Tiny", 1)

	stale := roster.New(f.api, roster.Session{Token: f.token})
	_, err := stale.Load(ctx)
	require.NoError(t, err)

	fresh := roster.New(f.api, roster.Session{Token: f.token})
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, fresh.Assign(ctx, f.users["D"], tiny))

	err = stale.Assign(ctx, f.users["E"], tiny)
	require.ErrorIs(t, err, roster.ErrCapacityExceeded)
	var remote *roster.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, client.CodeRosterFull, remote.Code)
	assert.Contains(t, roster.Describe(err), "Maximum 1 collaborators per team leader")

	tl, _ := stale.State().Leader(tiny)
	assert.Zero(t, tl.Count())
}

func TestBoardLoadRequiresSession(t *testing.T) {
	f := startAPI(t)
	board := roster.New(f.api, roster.Session{})
	_, err := board.Load(context.Background())
	require.ErrorIs(t, err, roster.ErrLoad)
}
