package auth

import (
	"context"
	"sync"
)

// SessionStore holds live sessions. A token is accepted only while its
// session id is present.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, actorID int64) error
	// Lookup returns the actor bound to sessionID, or ok=false.
	Lookup(ctx context.Context, sessionID string) (actorID int64, ok bool, err error)
	// RevokeAll removes every session of actorID and returns how many existed.
	RevokeAll(ctx context.Context, actorID int64) (int, error)
}

// MemorySessionStore is an in-process SessionStore for tests and local runs.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]int64
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]int64)}
}

func (m *MemorySessionStore) Create(_ context.Context, sessionID string, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = actorID
	return nil
}

func (m *MemorySessionStore) Lookup(_ context.Context, sessionID string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessions[sessionID]
	return id, ok, nil
}

func (m *MemorySessionStore) RevokeAll(_ context.Context, actorID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for sid, id := range m.sessions {
		if id == actorID {
			delete(m.sessions, sid)
			n++
		}
	}
	return n, nil
}
