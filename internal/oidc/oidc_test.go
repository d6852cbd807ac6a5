package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString(b) + "."
}

func TestInsecureVerifier_ParsesClaims(t *testing.T) {
	raw := fakeJWT(t, map[string]interface{}{
		"sub": "kc-1", "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{"roles": []string{"offline_access", "design-team"}},
	})
	tok, err := NewInsecureVerifier("kbwiki").Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "kc-1", claims["sub"])
	assert.Equal(t, authz.RoleDesignTeam, claims[TeamRoleClaim])
}

func TestInsecureVerifier_RejectsGarbage(t *testing.T) {
	v := NewInsecureVerifier("kbwiki")
	_, err := v.Verify(context.Background(), "garbage")
	require.Error(t, err)
	_, err = v.Verify(context.Background(), "a.!!!.c")
	require.Error(t, err)
}

func TestInsecureVerifier_Expiry(t *testing.T) {
	v := NewInsecureVerifier("kbwiki")
	_, err := v.Verify(context.Background(), fakeJWT(t, map[string]interface{}{"sub": "kc-1"}))
	require.ErrorContains(t, err, "no expiry")

	expired := fakeJWT(t, map[string]interface{}{"sub": "kc-1", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err = v.Verify(context.Background(), expired)
	require.ErrorContains(t, err, "expired")
}

func TestInsecureVerifier_DropsForgedTeamRole(t *testing.T) {
	raw := fakeJWT(t, map[string]interface{}{"sub": "kc-1", "exp": time.Now().Add(time.Hour).Unix(), TeamRoleClaim: "captain"})
	tok, err := NewInsecureVerifier("kbwiki").Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.NotContains(t, claims, TeamRoleClaim)
}

func TestTeamRole(t *testing.T) {
	realm := func(roles ...interface{}) map[string]interface{} {
		return map[string]interface{}{"roles": roles}
	}
	cases := []struct {
		name   string
		claims map[string]interface{}
		want   string
	}{
		{"none", map[string]interface{}{}, ""},
		{"unrelated roles", map[string]interface{}{"realm_access": realm("uma_authorization")}, ""},
		{"strongest realm role wins", map[string]interface{}{"realm_access": realm("design-team", "captain", "team-lead")}, authz.RoleCaptain},
		{"client role", map[string]interface{}{"resource_access": map[string]interface{}{"kbwiki": realm("team-lead")}}, authz.RoleTeamLead},
		{"other client ignored", map[string]interface{}{"resource_access": map[string]interface{}{"grafana": realm("captain")}}, ""},
		{"guest is not a team role", map[string]interface{}{"realm_access": realm("guest")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TeamRole(tc.claims, "kbwiki"))
		})
	}
}

func TestRoleResolver(t *testing.T) {
	ctx := context.Background()
	repo := users.NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &models.User{Email: "lead@team.org", FirstName: "Lee", LastName: "Ad", Role: authz.RoleTeamLead, Subteam: "chassis", Status: models.StatusActive}))
	resolve := RoleResolver(repo)

	t.Run("known user gets stored role", func(t *testing.T) {
		p, err := resolve(ctx, map[string]interface{}{"sub": "kc-1", "email": "Lead@Team.org", "role": "captain"})
		require.NoError(t, err)
		assert.Equal(t, authz.RoleTeamLead, p.Role)
		assert.Equal(t, "chassis", p.Subteam)
		assert.NotEqual(t, "kc-1", p.Sub)
	})

	t.Run("unknown user is a guest", func(t *testing.T) {
		p, err := resolve(ctx, map[string]interface{}{"sub": "kc-2", "email": "nobody@team.org"})
		require.NoError(t, err)
		assert.True(t, p.IsGuest())
	})

	t.Run("unknown user keeps keycloak team role", func(t *testing.T) {
		p, err := resolve(ctx, map[string]interface{}{"sub": "kc-3", "email": "new@team.org", TeamRoleClaim: authz.RoleDesignTeam})
		require.NoError(t, err)
		assert.Equal(t, authz.RoleDesignTeam, p.Role)
		assert.Empty(t, p.Subteam)
	})

	t.Run("local account overrides keycloak role", func(t *testing.T) {
		p, err := resolve(ctx, map[string]interface{}{"sub": "kc-1", "email": "lead@team.org", TeamRoleClaim: authz.RoleCaptain})
		require.NoError(t, err)
		assert.Equal(t, authz.RoleTeamLead, p.Role)
	})

	t.Run("guest token passes through", func(t *testing.T) {
		p, err := resolve(ctx, map[string]interface{}{"sub": "guest", "role": "guest"})
		require.NoError(t, err)
		assert.True(t, p.IsGuest())
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		_, err := resolve(ctx, map[string]interface{}{"email": "lead@team.org"})
		require.Error(t, err)
	})
}
