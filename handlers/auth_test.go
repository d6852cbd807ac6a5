package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/oidc"
	"github.com/ninersracing/kbwiki/internal/sessions"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginResponse struct {
	AccessToken  string                 `json:"accessToken"`
	RefreshToken string                 `json:"refreshToken"`
	ExpiresIn    int                    `json:"expiresIn"`
	User         map[string]interface{} `json:"user"`
}

func TestLoginPasswordSuccess(t *testing.T) {
	e := newTestEnv(t)
	e.member(t, "lead@team.org", authz.RoleTeamLead, "aerodynamics")

	w := e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "Lead@Team.org", "password": "password1"}, "")
	requireStatus(t, w, http.StatusOK)
	var resp loginResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.Equal(t, "lead@team.org", resp.User["email"])
	assert.NotContains(t, resp.User, "passwordHash")

	w = e.do(http.MethodGet, "/api/v1/me", nil, resp.AccessToken)
	requireStatus(t, w, http.StatusOK)
	var me struct {
		Principal authz.Principal        `json:"principal"`
		User      map[string]interface{} `json:"user"`
	}
	decode(t, w, &me)
	assert.Equal(t, authz.RoleTeamLead, me.Principal.Role)
	assert.Equal(t, "aerodynamics", me.Principal.Subteam)
	assert.Equal(t, "lead@team.org", me.User["email"])
}

func TestLoginFailures(t *testing.T) {
	e := newTestEnv(t)
	e.member(t, "lead@team.org", authz.RoleTeamLead, "aerodynamics")

	w := e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "lead@team.org", "password": "wrong"}, "")
	requireStatus(t, w, http.StatusUnauthorized)

	w = e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "nobody@team.org", "password": "password1"}, "")
	requireStatus(t, w, http.StatusUnauthorized)

	w = e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "lead@team.org"}, "")
	requireStatus(t, w, http.StatusBadRequest)

	w = e.do(http.MethodPost, "/api/v1/auth/login", obj{"mode": "magic", "email": "lead@team.org", "password": "x"}, "")
	requireStatus(t, w, http.StatusBadRequest)

	w = e.do(http.MethodPost, "/api/v1/auth/login", obj{"mode": "keycloak", "email": "lead@team.org", "password": "x"}, "")
	requireStatus(t, w, http.StatusBadRequest)
}

func TestGuestLogin(t *testing.T) {
	cfg := testConfig()
	hash, err := users.HashPassword("team-pass")
	require.NoError(t, err)
	cfg.Guest.PasswordHash = hash
	e := newTestEnvWith(t, cfg, nil)

	w := e.do(http.MethodPost, "/api/v1/auth/guest", obj{"password": "nope"}, "")
	requireStatus(t, w, http.StatusUnauthorized)

	w = e.do(http.MethodPost, "/api/v1/auth/guest", obj{"password": "team-pass"}, "")
	requireStatus(t, w, http.StatusOK)
	var resp loginResponse
	decode(t, w, &resp)
	assert.Empty(t, resp.RefreshToken)

	w = e.do(http.MethodGet, "/api/v1/documents", nil, resp.AccessToken)
	requireStatus(t, w, http.StatusOK)
	w = e.do(http.MethodPost, "/api/v1/documents", obj{"subteam": "aerodynamics", "title": "t", "content": "c"}, resp.AccessToken)
	requireStatus(t, w, http.StatusForbidden)
}

func TestGuestLoginDisabled(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/api/v1/auth/guest", obj{"password": "anything"}, "")
	requireStatus(t, w, http.StatusNotFound)
}

func TestRefreshRotates(t *testing.T) {
	e := newTestEnv(t)
	e.member(t, "lead@team.org", authz.RoleTeamLead, "aerodynamics")
	w := e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "lead@team.org", "password": "password1"}, "")
	requireStatus(t, w, http.StatusOK)
	var login loginResponse
	decode(t, w, &login)

	w = e.do(http.MethodPost, "/api/v1/auth/refresh", obj{"refreshToken": login.RefreshToken}, "")
	requireStatus(t, w, http.StatusOK)
	var refreshed loginResponse
	decode(t, w, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old refresh token is spent
	w = e.do(http.MethodPost, "/api/v1/auth/refresh", obj{"refreshToken": login.RefreshToken}, "")
	requireStatus(t, w, http.StatusUnauthorized)

	w = e.do(http.MethodPost, "/api/v1/auth/refresh", obj{"refreshToken": refreshed.RefreshToken}, "")
	requireStatus(t, w, http.StatusOK)
}

func TestRefreshDeletedUser(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "gone@team.org", authz.RoleTeamLead, "aerodynamics")
	rft, err := e.sessions.CreateSession(context.Background(), u.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, e.users.Delete(context.Background(), u.ID))

	w := e.do(http.MethodPost, "/api/v1/auth/refresh", obj{"refreshToken": rft}, "")
	requireStatus(t, w, http.StatusUnauthorized)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	srv, err := mr.Run()
	require.NoError(t, err)
	defer srv.Close()

	e := newTestEnv(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	sessions.SetBlacklistClient(client)
	t.Cleanup(func() { sessions.SetBlacklistClient(nil) })

	e.member(t, "lead@team.org", authz.RoleTeamLead, "aerodynamics")
	w := e.do(http.MethodPost, "/api/v1/auth/login", obj{"email": "lead@team.org", "password": "password1"}, "")
	requireStatus(t, w, http.StatusOK)
	var login loginResponse
	decode(t, w, &login)

	requireStatus(t, e.do(http.MethodGet, "/api/v1/me", nil, login.AccessToken), http.StatusOK)

	w = e.do(http.MethodPost, "/api/v1/auth/logout", obj{"refreshToken": login.RefreshToken}, login.AccessToken)
	requireStatus(t, w, http.StatusOK)

	w = e.do(http.MethodGet, "/api/v1/me", nil, login.AccessToken)
	requireStatus(t, w, http.StatusUnauthorized)
	assert.Contains(t, w.Body.String(), "token revoked")

	w = e.do(http.MethodPost, "/api/v1/auth/refresh", obj{"refreshToken": login.RefreshToken}, "")
	requireStatus(t, w, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)
	requireStatus(t, e.do(http.MethodGet, "/api/v1/documents", nil, ""), http.StatusUnauthorized)
	requireStatus(t, e.do(http.MethodGet, "/api/v1/documents", nil, "not-a-token"), http.StatusUnauthorized)
}

func TestParseExpFromJWT(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000}`))
	exp, err := parseExpFromJWT("h." + payload + ".s")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), exp.Unix())

	_, err = parseExpFromJWT("garbage")
	require.Error(t, err)
	_, err = parseExpFromJWT("h." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".s")
	require.Error(t, err)
}

func TestLoginKeycloak(t *testing.T) {
	claims, _ := json.Marshal(map[string]interface{}{"sub": "kc-1", "email": "lead@team.org", "exp": time.Now().Add(time.Hour).Unix()})
	idToken := "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(claims) + "."

	var gotGrant string
	kc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/team/protocol/openid-connect/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotGrant = r.PostForm.Get("grant_type")
		if r.PostForm.Get("password") != "kc-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at", "token_type": "Bearer", "id_token": idToken})
	}))
	defer kc.Close()

	cfg := testConfig()
	cfg.Keycloak.URL = kc.URL
	cfg.Keycloak.Realm = "team"
	cfg.Keycloak.ClientID = "kbwiki"
	e := newTestEnvWith(t, cfg, oidc.NewInsecureVerifier("kbwiki"))
	e.member(t, "lead@team.org", authz.RoleTeamLead, "aerodynamics")

	w := e.do(http.MethodPost, "/api/v1/auth/login", obj{"mode": "keycloak", "email": "lead@team.org", "password": "bad"}, "")
	requireStatus(t, w, http.StatusUnauthorized)

	w = e.do(http.MethodPost, "/api/v1/auth/login", obj{"mode": "keycloak", "email": "lead@team.org", "password": "kc-pass"}, "")
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "password", gotGrant)
	var resp loginResponse
	decode(t, w, &resp)
	assert.Equal(t, "lead@team.org", resp.User["email"])
}
