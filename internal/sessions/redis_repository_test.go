package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRepository_CreateGetDelete(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	repo := NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:session:")
	ctx := context.Background()
	s := &Session{RefreshToken: "r1", UserID: "user-1", ExpiresAt: time.Now().UTC().Add(5 * time.Second)}
	require.NoError(t, repo.Create(ctx, s))
	require.True(t, m.Exists("test:session:r1"))

	got, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "user-1", got.UserID)

	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
	got2, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, got2)
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	repo := NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "r2", UserID: "user-2", ExpiresAt: time.Now().UTC().Add(time.Second)}))

	got, err := repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)

	m.FastForward(2 * time.Second)

	got2, err := repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.Nil(t, got2)
}
