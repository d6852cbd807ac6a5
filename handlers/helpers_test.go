package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/accounts"
	"github.com/ninersracing/kbwiki/internal/catalog"
	"github.com/ninersracing/kbwiki/internal/comments"
	"github.com/ninersracing/kbwiki/internal/config"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/portfolio"
	"github.com/ninersracing/kbwiki/internal/sessions"
	"github.com/ninersracing/kbwiki/internal/storage"
	"github.com/ninersracing/kbwiki/internal/tokens"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/middleware"
	"github.com/stretchr/testify/require"
)

// obj is a JSON request body.
type obj map[string]interface{}

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
	blobs    *storage.MemoryStore
	ready    map[string]ReadyCheck
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "handlers-test-secret-0123456789abcdef"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour
	cfg.Guest.TokenTTL = time.Hour
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, testConfig(), nil)
}

func newTestEnvWith(t *testing.T, cfg *config.Config, idTokens middleware.Verifier) *testEnv {
	t.Helper()
	sessions.SetBlacklistClient(nil)

	e := &testEnv{
		cfg:      cfg,
		users:    users.NewService(users.NewMemoryUserRepository()),
		sessions: sessions.NewService(sessions.NewMemoryRepository()),
		blobs:    storage.NewMemoryStore(),
		ready:    map[string]ReadyCheck{},
	}
	docs := repository.NewMemoryRepo()
	cat := catalog.NewService(docs, nil, time.Minute)
	cs := comments.NewService(comments.NewMemoryRepo(), cat)

	e.router = NewRouter(Deps{
		Verifier:   tokens.NewHS256Verifier(cfg.JWT.Secret),
		Auth:       NewAuthHandler(cfg, e.users, e.sessions, idTokens),
		Documents:  NewDocumentHandler(cat, cs, storage.NewUploader(e.blobs)),
		Accounts:   NewAccountHandler(accounts.NewService(accounts.NewMemoryRepo(), e.users)),
		Portfolios: NewPortfolioHandler(portfolio.NewService(portfolio.NewMemoryRepo())),
		Ready:      e.ready,
	})
	return e
}

// member creates an account and returns it with a valid access token.
func (e *testEnv) member(t *testing.T, email, role, subteamID string) (*models.User, string) {
	t.Helper()
	u, err := e.users.Create(context.Background(), users.NewUser{
		Email:     email,
		FirstName: "Test",
		LastName:  role,
		Role:      role,
		Subteam:   subteamID,
		Password:  "password1",
	})
	require.NoError(t, err)
	tok, err := tokens.GenerateAccessToken(e.cfg, u, time.Minute)
	require.NoError(t, err)
	return u, tok
}

func (e *testEnv) guestToken(t *testing.T) string {
	t.Helper()
	tok, err := tokens.GenerateGuestToken(e.cfg, time.Minute)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
}
