package sessions

import (
	"fmt"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
)

// ErrInvalidRefresh is returned for unknown or expired refresh tokens.
var ErrInvalidRefresh = fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated)

// Session is a refresh session for a signed-in team member. Guests never
// receive one.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
