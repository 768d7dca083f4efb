package tokenstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the slots in process memory. It does not survive restarts and is
// meant for tests and throwaway sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context) (*token.Tokens, error) {
	return decodeTokens(m.get(SlotTokens)), nil
}

func (m *MemoryStore) LoadUser(_ context.Context) (*users.User, error) {
	return decodeUser(m.get(SlotUser)), nil
}

func (m *MemoryStore) Save(_ context.Context, tokens token.Tokens) error {
	data, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	m.SetRaw(SlotTokens, data)
	return nil
}

func (m *MemoryStore) SaveUser(_ context.Context, user users.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	m.SetRaw(SlotUser, data)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, SlotTokens)
	delete(m.slots, SlotUser)
	return nil
}

// SetRaw overwrites a slot with arbitrary bytes
func (m *MemoryStore) SetRaw(slot string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = append([]byte(nil), data...)
}

func (m *MemoryStore) get(slot string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[slot]
}
