package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/internal/config"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/pkg/middleware"
)

// GuestSubject is the subject of every guest token.
const GuestSubject = "guest"

// GenerateAccessToken creates a signed JWT access token carrying the user's
// role and sub-team.
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	return sign(cfg, jwt.MapClaims{
		"sub":     u.ID,
		"name":    u.DisplayName(),
		"email":   u.Email,
		"role":    u.Role,
		"subteam": u.Subteam,
	}, ttl)
}

// GenerateGuestToken creates a read-only token for the shared team password.
func GenerateGuestToken(cfg *config.Config, ttl time.Duration) (string, error) {
	return sign(cfg, jwt.MapClaims{
		"sub":  GuestSubject,
		"name": "Guest",
		"role": authz.RoleGuest,
	}, ttl)
}

func sign(cfg *config.Config, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["jti"] = uuid.NewString()
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// HS256Verifier verifies access tokens issued by this service.
type HS256Verifier struct {
	secret []byte
}

func NewHS256Verifier(secret string) *HS256Verifier {
	return &HS256Verifier{secret: []byte(secret)}
}

func (v *HS256Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return &claimsToken{claims: claims}, nil
}

// ExpiresAt returns the exp claim of a token this service signed.
func (v *HS256Verifier) ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	return exp.Time, nil
}
