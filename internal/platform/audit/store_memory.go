package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process. Used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Log
	nextID  int64
	// Err, when set, is returned by Insert.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, l *Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.nextID++
	l.ID = m.nextID
	cp := *l
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryStore) List(_ context.Context, f Filter, limit, offset int) ([]*Log, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Log
	for i := len(m.entries) - 1; i >= 0; i-- {
		l := m.entries[i]
		if f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID) {
			continue
		}
		if f.Action != "" && l.Action != f.Action {
			continue
		}
		matched = append(matched, l)
	}
	total := len(matched)
	if offset >= total {
		return []*Log{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// Entries returns a snapshot of every stored entry in insertion order.
func (m *MemoryStore) Entries() []Log {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Log, len(m.entries))
	for i, l := range m.entries {
		out[i] = *l
	}
	return out
}

// Actions returns the action codes in insertion order.
func (m *MemoryStore) Actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.entries))
	for i, l := range m.entries {
		out[i] = l.Action
	}
	return out
}
