//go:build integration

package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Otise/opendatakit.build/internal/session"
	"github.com/Otise/opendatakit.build/pkg/database"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}

	ctx := context.Background()
	client, err := database.ConnectRedis(ctx, url)
	require.NoError(t, err, "failed to connect to Redis")

	t.Cleanup(func() {
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})

	return client
}

func TestRedis_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedis(newTestRedisClient(t), "test-crud")

	s := session.New("alice", time.Hour)
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	require.NoError(t, store.Delete(ctx, s.ID))

	_, err = store.Get(ctx, s.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedis_CreateExpiredSession(t *testing.T) {
	store := session.NewRedis(newTestRedisClient(t), "test-expired")

	err := store.Create(context.Background(), session.New("alice", -time.Second))
	require.ErrorIs(t, err, session.ErrExpired)
}

func TestRedis_DeleteByUsername(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedis(newTestRedisClient(t), "test-by-user")

	a1 := session.New("alice", time.Hour)
	a2 := session.New("alice", time.Hour)
	b1 := session.New("bob", time.Hour)
	for _, s := range []*session.Session{a1, a2, b1} {
		require.NoError(t, store.Create(ctx, s))
	}

	require.NoError(t, store.DeleteByUsername(ctx, "alice"))

	_, err := store.Get(ctx, a1.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Get(ctx, a2.ID)
	require.ErrorIs(t, err, session.ErrNotFound)

	_, err = store.Get(ctx, b1.ID)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
}

func TestRedis_UserIndexKeepsLongestTTL(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(t)
	store := session.NewRedis(client, "test-index-ttl")
	userKey := "test-index-ttl:user:alice"

	require.NoError(t, store.Create(ctx, session.New("alice", time.Hour)))
	ttl, err := client.TTL(ctx, userKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 50*time.Minute)

	require.NoError(t, store.Create(ctx, session.New("alice", time.Minute)))
	ttl, err = client.TTL(ctx, userKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 50*time.Minute, "a shorter session must not shorten the index")

	require.NoError(t, store.Create(ctx, session.New("alice", 3*time.Hour)))
	ttl, err = client.TTL(ctx, userKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 2*time.Hour)
}
