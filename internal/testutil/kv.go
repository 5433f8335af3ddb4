package testutil

import (
	"context"
	"maps"
	"sync"
)

// MemoryKV is an in-memory persistence adapter.
//
// LoadErr and SaveErr, when set, are returned by every call so tests can
// exercise the storage-unavailable paths.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryKV struct {
	mu      sync.Mutex
	data    map[string]string
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Load returns the value stored under key.
func (m *MemoryKV) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return "", false, m.LoadErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Save stores value under key.
func (m *MemoryKV) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data[key] = value
	m.saves++
	return nil
}

// Put seeds a value without counting it as a save.
func (m *MemoryKV) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Get returns the raw stored value.
func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Saves returns the number of successful Save calls.
func (m *MemoryKV) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Snapshot returns a copy of all stored values.
func (m *MemoryKV) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.data)
}
