package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/config"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/internal/sessions"
	"github.com/ninersracing/kbwiki/internal/tokens"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// LoginRequest signs a member in. Mode "password" (default) checks the local
// account; "keycloak" runs a password grant against the configured realm.
type LoginRequest struct {
	Mode     string `json:"mode"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	idTokens    middleware.Verifier
	httpClient  *http.Client
}

// NewAuthHandler wires the auth endpoints. idTokens verifies Keycloak ID
// tokens and may be nil when Keycloak is not configured.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, idTokens middleware.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, idTokens: idTokens, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg gin.IRoutes) {
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/guest", h.GuestLogin)
	rg.POST("/auth/refresh", h.Refresh)
	rg.POST("/auth/logout", h.Logout)
}

// RegisterMe registers /me on an authenticated group.
func (h *AuthHandler) RegisterMe(rg gin.IRoutes) {
	rg.GET("/me", h.Me)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	var (
		u   *models.User
		err error
	)
	switch req.Mode {
	case "", "password":
		u, err = h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	case "keycloak":
		u, err = h.keycloakLogin(c.Request.Context(), req.Email, req.Password)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mode"})
		return
	}
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}
	h.issue(c, u)
}

func (h *AuthHandler) issue(c *gin.Context, u *models.User) {
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"user":         u,
		"expiresIn":    int(h.cfg.JWT.AccessTokenTTL.Seconds()),
	})
}

// GuestLogin exchanges the shared team password for a read-only token.
func (h *AuthHandler) GuestLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if h.cfg.Guest.PasswordHash == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "guest access is disabled"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(h.cfg.Guest.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	access, err := tokens.GenerateGuestToken(h.cfg, h.cfg.Guest.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "expiresIn": int(h.cfg.Guest.TokenTTL.Seconds())})
}

// Refresh rotates the refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	next, sess, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		if errors.Is(err, sessions.ErrInvalidRefresh) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		respondError(c, err)
		return
	}
	u, err := h.usersSvc.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			_ = h.sessionsSvc.DeleteRefresh(c.Request.Context(), next)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}
		respondError(c, err)
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": next, "expiresIn": int(h.cfg.JWT.AccessTokenTTL.Seconds())})
}

// Logout invalidates the refresh token and blacklists the current access token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !bindJSON(c, &req) {
		return
	}
	var at string
	if auth := c.GetHeader("Authorization"); auth != "" {
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &at); n != 1 {
			at = ""
		}
	}
	if at != "" {
		if exp, err := parseExpFromJWT(at); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
					return
				}
			}
		}
	}
	if req.RefreshToken != "" {
		if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the caller's principal and, for members, their account.
func (h *AuthHandler) Me(c *gin.Context) {
	p := actor(c)
	resp := gin.H{"principal": p}
	if !p.IsGuest() && p.Email != "" {
		u, err := h.usersSvc.GetByEmail(c.Request.Context(), p.Email)
		switch {
		case err == nil:
			resp["user"] = u
		case !errors.Is(err, apperr.ErrNotFound):
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// parseExpFromJWT decodes the JWT payload and returns the `exp` claim as time.Time.
// This performs payload-only parsing (no signature verification) and is suitable
// for computing remaining TTLs for blacklisting purposes.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp json.Number `json:"exp"`
	}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == "" {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	f, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(f), 0), nil
}

// keycloakLogin runs a password grant and maps the verified identity onto a
// local account by e-mail.
func (h *AuthHandler) keycloakLogin(ctx context.Context, email, password string) (*models.User, error) {
	if !h.cfg.Keycloak.Enabled() || h.idTokens == nil {
		return nil, apperr.Validation("keycloak login is not configured")
	}
	raw, err := h.requestIDToken(ctx, email, password)
	if err != nil {
		logger.Warnf("keycloak password grant failed: %v", err)
		return nil, apperr.ErrUnauthenticated
	}
	tok, err := h.idTokens.Verify(ctx, raw)
	if err != nil {
		logger.Warnf("keycloak id token rejected: %v", err)
		return nil, apperr.ErrUnauthenticated
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := tok.Claims(&claims); err != nil || claims.Email == "" {
		return nil, apperr.ErrUnauthenticated
	}
	u, err := h.usersSvc.GetByEmail(ctx, claims.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: no team account for %s", apperr.ErrUnauthorized, claims.Email)
	}
	return u, err
}

// requestIDToken runs the resource-owner password grant against the realm's
// token endpoint and returns the ID token.
func (h *AuthHandler) requestIDToken(ctx context.Context, username, password string) (string, error) {
	kc := h.cfg.Keycloak
	conf := &oauth2.Config{
		ClientID:     kc.ClientID,
		ClientSecret: kc.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  kc.Issuer() + "/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "email", "profile"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return "", err
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("token endpoint returned no id_token")
	}
	return raw, nil
}
