package session

import (
	"context"
	"sync"
	"time"
)

// Memory keeps sessions in process memory. Expired entries are dropped on
// read and by Prune.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Create(_ context.Context, s *Session) error {
	stored := *s

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = &stored
	ids, ok := m.byUser[s.Username]
	if !ok {
		ids = make(map[string]struct{})
		m.byUser[s.Username] = ids
	}
	ids[s.ID] = struct{}{}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		m.mu.Lock()
		m.remove(id)
		m.mu.Unlock()
		return nil, ErrExpired
	}

	found := *s
	return &found, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(id)
	return nil
}

func (m *Memory) DeleteByUsername(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.byUser[username] {
		delete(m.sessions, id)
	}
	delete(m.byUser, username)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Prune removes every session expired at now and returns how many were dropped.
func (m *Memory) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			m.remove(id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// remove must be called with mu held.
func (m *Memory) remove(id string) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)

	if ids, ok := m.byUser[s.Username]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.byUser, s.Username)
		}
	}
}
