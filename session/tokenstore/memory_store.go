package tokenstore

import (
	"errors"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. It counts writes so tests can assert on them,
// and can be made to fail.
type MemoryStore struct {
	mu     sync.RWMutex
	token  string
	saves  int
	clears int
	loads  int

	FailSave  error
	FailClear error
	FailLoad  error
}

// NewMemoryStore creates a store holding token ("" for empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.FailLoad != nil {
		return "", m.FailLoad
	}
	return m.token, nil
}

func (m *MemoryStore) Save(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.saves++
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClear != nil {
		return m.FailClear
	}
	m.clears++
	m.token = ""
	return nil
}

// Token returns the current token without counting as a load.
func (m *MemoryStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Saves returns how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Clears returns how many successful clears happened.
func (m *MemoryStore) Clears() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clears
}

// Loads returns how many times Load was called.
func (m *MemoryStore) Loads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}
