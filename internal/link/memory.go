package link

import (
	"context"
	"sync"
)

// Memory is an in-memory Transport for tests.
//
// ReadErr and WriteErr, when set, make the corresponding calls fail.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Memory struct {
	mu       sync.Mutex
	address  string
	clears   int
	writes   int
	ReadErr  error
	WriteErr error
}

var _ Transport = (*Memory)(nil)

// NewMemory creates a transport whose current address is address.
func NewMemory(address string) *Memory {
	return &Memory{address: address}
}

// Address returns the current address.
func (m *Memory) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

// SetAddress replaces the current address.
func (m *Memory) SetAddress(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.address = address
}

// Clears returns how many times ClearToken succeeded.
func (m *Memory) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Writes returns how many times WriteToken succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ReadToken implements Transport.
func (m *Memory) ReadToken(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", false, m.ReadErr
	}
	return TokenOf(m.address)
}

// WriteToken implements Transport.
func (m *Memory) WriteToken(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return "", m.WriteErr
	}
	next, err := WithParam(m.address, TokenParam, token)
	if err != nil {
		return "", err
	}
	m.address = next
	m.writes++
	return next, nil
}

// ClearToken implements Transport.
func (m *Memory) ClearToken(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	next, err := WithParam(m.address, TokenParam, "")
	if err != nil {
		return err
	}
	m.address = next
	m.clears++
	return nil
}

// DocumentID implements Transport.
func (m *Memory) DocumentID(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return DocumentOf(m.address)
}

// SetDocumentID implements Transport.
func (m *Memory) SetDocumentID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	next, err := WithParam(m.address, DocumentParam, id)
	if err != nil {
		return err
	}
	m.address = next
	return nil
}
