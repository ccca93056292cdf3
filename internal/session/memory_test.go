package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := New("alice", time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "alice", s.Username)
	assert.False(t, s.IsExpired())
	assert.NotEqual(t, s.ID, New("alice", time.Hour).ID)
}

func TestMemory_CreateGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := New("alice", time.Hour)

	require.NoError(t, m.Create(ctx, s))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Username, got.Username)

	got.Username = "mallory"
	again, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username, "returned sessions must be copies")

	_, err = m.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_GetExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := New("alice", -time.Second)
	require.NoError(t, m.Create(ctx, s))

	_, err := m.Get(ctx, s.ID)
	require.ErrorIs(t, err, ErrExpired)

	_, err = m.Get(ctx, s.ID)
	require.ErrorIs(t, err, ErrNotFound, "expired sessions are dropped on read")
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := New("alice", time.Hour)
	require.NoError(t, m.Create(ctx, s))

	require.NoError(t, m.Delete(ctx, s.ID))
	require.NoError(t, m.Delete(ctx, s.ID))

	_, err := m.Get(ctx, s.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestMemory_DeleteByUsername(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a1 := New("alice", time.Hour)
	a2 := New("alice", time.Hour)
	b1 := New("bob", time.Hour)
	for _, s := range []*Session{a1, a2, b1} {
		require.NoError(t, m.Create(ctx, s))
	}

	require.NoError(t, m.DeleteByUsername(ctx, "alice"))

	_, err := m.Get(ctx, a1.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, a2.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(ctx, b1.ID)
	require.NoError(t, err)
}

func TestMemory_Prune(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	live := New("alice", time.Hour)
	dead := New("bob", time.Minute)
	require.NoError(t, m.Create(ctx, live))
	require.NoError(t, m.Create(ctx, dead))

	assert.Equal(t, 1, m.Prune(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 1, m.Len())

	_, err := m.Get(ctx, live.ID)
	require.NoError(t, err)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := New("alice", time.Hour)
			_ = m.Create(ctx, s)
			_, _ = m.Get(ctx, s.ID)
			_ = m.Delete(ctx, s.ID)
		}()
	}
	wg.Wait()

	assert.Zero(t, m.Len())
	require.NoError(t, m.Ping(ctx))
}
