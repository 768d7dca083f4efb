// Package storefake provides a token store double whose operations can be made to fail
// and whose calls are counted.
package storefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/tokenstore"
	"github.com/jrsteele09/plan-session/users"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore wraps a MemoryStore. Each operation returns the injected error for that
// operation, if any, before touching the underlying slots.
type FakeStore struct {
	*tokenstore.MemoryStore

	mu       sync.Mutex
	loadErr  error
	saveErr  error
	clearErr error
	calls    map[string]int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		MemoryStore: tokenstore.NewMemoryStore(),
		calls:       make(map[string]int),
	}
}

func (f *FakeStore) FailLoad(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *FakeStore) FailSave(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *FakeStore) FailClear(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearErr = err
}

// Calls returns how many times the named operation ("Load", "Save", ...) was invoked
func (f *FakeStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeStore) Load(ctx context.Context) (*token.Tokens, error) {
	if err := f.record("Load"); err != nil {
		return nil, err
	}
	return f.MemoryStore.Load(ctx)
}

func (f *FakeStore) LoadUser(ctx context.Context) (*users.User, error) {
	if err := f.record("LoadUser"); err != nil {
		return nil, err
	}
	return f.MemoryStore.LoadUser(ctx)
}

func (f *FakeStore) Save(ctx context.Context, tokens token.Tokens) error {
	if err := f.record("Save"); err != nil {
		return err
	}
	return f.MemoryStore.Save(ctx, tokens)
}

func (f *FakeStore) SaveUser(ctx context.Context, user users.User) error {
	if err := f.record("SaveUser"); err != nil {
		return err
	}
	return f.MemoryStore.SaveUser(ctx, user)
}

func (f *FakeStore) Clear(ctx context.Context) error {
	if err := f.record("Clear"); err != nil {
		return err
	}
	return f.MemoryStore.Clear(ctx)
}

func (f *FakeStore) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	switch op {
	case "Load", "LoadUser":
		return f.loadErr
	case "Save", "SaveUser":
		return f.saveErr
	default:
		return f.clearErr
	}
}
