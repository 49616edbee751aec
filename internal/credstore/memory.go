package credstore

import (
	"context"
	"sync"
)

// Memory is a thread-safe in-memory credential store. Used in tests and in
// deployments that have not configured a database path.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // kind → user_id → record
}

// NewMemory creates an empty in-memory credential store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record)}
}

func (m *Memory) Get(_ context.Context, kind, userID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[kind][userID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Put(_ context.Context, kind, userID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUser, ok := m.records[kind]
	if !ok {
		byUser = make(map[string]Record)
		m.records[kind] = byUser
	}
	byUser[userID] = rec.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, kind, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records[kind], userID)
	return nil
}

func (m *Memory) Close() error { return nil }
