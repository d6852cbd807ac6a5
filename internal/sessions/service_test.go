package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	_, err = svc.ValidateRefresh(ctx, r)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestValidateRefreshExpired(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateRefresh(ctx, r)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	left, err := repo.GetByRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, left, "expired session is removed")
}

func TestRotate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	old, err := svc.CreateSession(ctx, "user-9", time.Hour)
	require.NoError(t, err)

	next, sess, err := svc.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, old, next)
	require.Equal(t, "user-9", sess.UserID)

	_, err = svc.ValidateRefresh(ctx, old)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = svc.ValidateRefresh(ctx, next)
	require.NoError(t, err)
}
