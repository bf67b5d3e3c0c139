package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/artistmail/webmail/pkg/config"
)

// MemStore keeps the session in memory; it does not survive a restart.
type MemStore struct {
	sync.Mutex
	value []byte
}

var _ Store = &MemStore{}

// NewMemStore creates an empty MemStore.
func NewMemStore(_ config.Session) (Store, error) {
	return &MemStore{}, nil
}

// Get implements Store.
func (m *MemStore) Get(_ context.Context) (*Session, error) {
	m.Lock()
	defer m.Unlock()
	if m.value == nil {
		return nil, ErrNotExist
	}
	return decode(m.value)
}

// Set implements Store.  The session is serialized so later mutation of s is not observed.
func (m *MemStore) Set(_ context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	m.value = b
	return nil
}

// Clear implements Store.
func (m *MemStore) Clear(_ context.Context) error {
	m.Lock()
	defer m.Unlock()
	m.value = nil
	return nil
}

// Raw returns the serialized session, or nil if none is stored.
func (m *MemStore) Raw() []byte {
	m.Lock()
	defer m.Unlock()
	return m.value
}
