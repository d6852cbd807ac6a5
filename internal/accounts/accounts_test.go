package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	captain  = authz.Principal{Sub: "cap-1", Email: "cap@team.org", Role: authz.RoleCaptain}
	teamLead = authz.Principal{Sub: "lead-1", Email: "lead@team.org", Role: authz.RoleTeamLead}
	guest    = authz.Principal{Sub: "guest", Role: authz.RoleGuest}
)

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	users *users.Service
	clock time.Time
}

func newFixture() *fixture {
	f := &fixture{repo: NewMemoryRepo(), clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.users = users.NewService(users.NewMemoryUserRepository())
	f.svc = NewService(f.repo, f.users)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func form(email string) SubmitInput {
	return SubmitInput{
		FirstName:       "Sam",
		LastName:        "Rivera",
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            authz.RoleDesignTeam,
		Subteam:         "aerodynamics",
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	r, err := f.svc.Submit(ctx, form("  Sam@Team.org "))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "sam@team.org", r.Email)
	assert.Equal(t, "Sam Rivera", r.FullName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte("secret1")))

	stored, err := f.repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.PasswordHash, stored.PasswordHash)
}

func TestSubmit_Rejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
		want   error
	}{
		{"missing name", func(in *SubmitInput) { in.FirstName = " " }, apperr.ErrValidation},
		{"bad email", func(in *SubmitInput) { in.Email = "not-an-email" }, apperr.ErrValidation},
		{"short password", func(in *SubmitInput) { in.Password, in.ConfirmPassword = "abc", "abc" }, apperr.ErrValidation},
		{"mismatched confirm", func(in *SubmitInput) { in.ConfirmPassword = "other1" }, apperr.ErrValidation},
		{"captain role", func(in *SubmitInput) { in.Role = authz.RoleCaptain }, apperr.ErrValidation},
		{"unknown subteam", func(in *SubmitInput) { in.Subteam = "marketing" }, apperr.ErrInvalidSubteam},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := form("x@team.org")
			tc.mutate(&in)
			_, err := f.svc.Submit(ctx, in)
			require.ErrorIs(t, err, tc.want)
		})
	}
	all, err := f.repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPending_DedupesAndSkipsExistingUsers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	old, err := f.svc.Submit(ctx, form("dup@team.org"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, form("member@team.org"))
	require.NoError(t, err)
	newest, err := f.svc.Submit(ctx, form("dup@team.org"))
	require.NoError(t, err)
	_, err = f.users.Create(ctx, users.NewUser{Email: "member@team.org", Role: authz.RoleTeamLead, Password: "pw123456"})
	require.NoError(t, err)

	view, err := f.svc.Pending(ctx, captain)
	require.NoError(t, err)
	require.Len(t, view.Requests, 1)
	assert.Equal(t, newest.ID, view.Requests[0].ID)
	require.Len(t, view.Duplicates, 1)
	assert.Equal(t, old.ID, view.Duplicates[0].ID)

	_, err = f.svc.Pending(ctx, teamLead)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestPending_IndexFallbackMatchesIndexed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, e := range []string{"a@team.org", "b@team.org", "c@team.org"} {
		_, err := f.svc.Submit(ctx, form(e))
		require.NoError(t, err)
	}
	indexed, err := f.svc.Pending(ctx, captain)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.IndexFallbacks.WithLabelValues("accountRequests"))
	f.repo.SetIndexReady(false)
	fallback, err := f.svc.Pending(ctx, captain)
	require.NoError(t, err)
	assert.Equal(t, indexed, fallback)
	assert.Equal(t, "c@team.org", fallback.Requests[0].Email)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IndexFallbacks.WithLabelValues("accountRequests")))
}

func TestApprove_CreatesUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.svc.Submit(ctx, form("new@team.org"))
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, captain, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Empty(t, approved.Note)
	require.NotNil(t, approved.DecidedAt)

	u, err := f.users.Authenticate(ctx, "new@team.org", "secret1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleDesignTeam, u.Role)
	assert.Equal(t, "aerodynamics", u.Subteam)

	_, err = f.svc.Approve(ctx, captain, r.ID)
	require.ErrorIs(t, err, ErrDecided)
	_, err = f.svc.Deny(ctx, captain, r.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestApprove_ExistingAccountOnlyMarksRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.users.Create(ctx, users.NewUser{Email: "old@team.org", Role: authz.RoleTeamLead, Password: "original"})
	require.NoError(t, err)
	r, err := f.svc.Submit(ctx, form("old@team.org"))
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, captain, r.ID)
	require.NoError(t, err)
	assert.Equal(t, NoteExistingAccount, approved.Note)

	u, err := f.users.Authenticate(ctx, "old@team.org", "original")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleTeamLead, u.Role)
}

func TestApproveDeny_RequireCaptain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.svc.Submit(ctx, form("x@team.org"))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, teamLead, r.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.Deny(ctx, guest, r.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.ErrorIs(t, f.svc.DeleteRequest(ctx, teamLead, r.ID), apperr.ErrUnauthorized)

	denied, err := f.svc.Deny(ctx, captain, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, denied.Status)
	ok, err := f.users.Exists(ctx, "x@team.org")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApprove_Missing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Approve(context.Background(), captain, "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := f.svc.Submit(ctx, form("x@team.org"))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteRequest(ctx, captain, r.ID))
	require.ErrorIs(t, f.svc.DeleteRequest(ctx, captain, r.ID), apperr.ErrNotFound)
}

func TestCleanupOrphaned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orphan, err := f.svc.Submit(ctx, form("has@team.org"))
	require.NoError(t, err)
	open, err := f.svc.Submit(ctx, form("open@team.org"))
	require.NoError(t, err)
	_, err = f.users.Create(ctx, users.NewUser{Email: "has@team.org", Role: authz.RoleTeamLead, Password: "pw123456"})
	require.NoError(t, err)

	n, err := f.svc.CleanupOrphaned(ctx, captain)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.repo.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, NoteAutoApproved, got.Note)
	got, err = f.repo.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	n, err = f.svc.CleanupOrphaned(ctx, captain)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMembers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.users.Create(ctx, users.NewUser{Email: "a@team.org", FirstName: "Ann", Role: authz.RoleTeamLead, Subteam: "aerodynamics", Password: "pw123456"})
	require.NoError(t, err)
	_, err = f.users.Create(ctx, users.NewUser{Email: "b@team.org", FirstName: "Ben", Role: authz.RoleCaptain, Password: "pw123456"})
	require.NoError(t, err)

	groups, err := f.svc.MembersBySubteam(ctx, captain)
	require.NoError(t, err)
	require.Len(t, groups["aerodynamics"], 1)
	require.Len(t, groups[subteam.General], 1)
	assert.Equal(t, "b@team.org", groups[subteam.General][0].Email)

	_, err = f.svc.MembersBySubteam(ctx, teamLead)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	aero, err := f.svc.SubteamMembers(ctx, teamLead, "aerodynamics")
	require.NoError(t, err)
	require.Len(t, aero, 1)
	_, err = f.svc.SubteamMembers(ctx, guest, "aerodynamics")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.SubteamMembers(ctx, teamLead, "nope")
	require.ErrorIs(t, err, apperr.ErrInvalidSubteam)

	role := authz.RoleDesignTeam
	st := "chassis"
	u, err := f.svc.UpdateMember(ctx, captain, a.ID, users.Patch{Role: &role, Subteam: &st})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleDesignTeam, u.Role)
	assert.Equal(t, "chassis", u.Subteam)

	_, err = f.svc.UpdateMember(ctx, teamLead, a.ID, users.Patch{Role: &role})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.UpdateMember(ctx, captain, a.ID, users.Patch{})
	require.ErrorIs(t, err, apperr.ErrValidation)

	require.ErrorIs(t, f.svc.RemoveMember(ctx, captain, captain.Sub), apperr.ErrValidation)
	require.NoError(t, f.svc.RemoveMember(ctx, captain, a.ID))
	require.ErrorIs(t, f.svc.RemoveMember(ctx, captain, a.ID), apperr.ErrNotFound)
}
