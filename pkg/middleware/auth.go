package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/sessions"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

const (
	claimsKey    = "claims"
	principalKey = "principal"
	tokenKey     = "accessToken"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

type chainVerifier []Verifier

// FirstOf accepts a token when any of verifiers does, trying them in order.
func FirstOf(verifiers ...Verifier) Verifier {
	return chainVerifier(verifiers)
}

func (vs chainVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	errs := make([]error, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

// PrincipalResolver turns verified claims into the caller's principal.
type PrincipalResolver func(ctx context.Context, claims map[string]interface{}) (authz.Principal, error)

// ClaimsPrincipal reads sub, email, name, role and subteam straight from the claims.
func ClaimsPrincipal(_ context.Context, claims map[string]interface{}) (authz.Principal, error) {
	str := func(k string) string {
		s, _ := claims[k].(string)
		return s
	}
	p := authz.Principal{Sub: str("sub"), Email: str("email"), Name: str("name"), Role: str("role"), Subteam: str("subteam")}
	if p.Sub == "" {
		return p, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthenticated)
	}
	return p, nil
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the
// provided verifier, rejects blacklisted tokens and stores the principal. A nil
// resolver means ClaimsPrincipal.
func AuthMiddleware(ver Verifier, resolve PrincipalResolver) gin.HandlerFunc {
	if resolve == nil {
		resolve = ClaimsPrincipal
	}
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		black, err := sessions.IsAccessTokenBlacklisted(c.Request.Context(), token)
		if err != nil {
			logger.Warnf("blacklist check failed: %v", err)
		}
		if black {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}
		p, err := resolve(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(principalKey, p)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (authz.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return authz.Principal{}, false
	}
	p, ok := v.(authz.Principal)
	return p, ok
}

// AccessTokenFrom returns the raw bearer token of the request.
func AccessTokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// RequireAction rejects callers the policy does not allow to perform action.
func RequireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if !authz.Allowed(p, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": apperr.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
