package tokenstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
)

const (
	// dirPermissions is the permission mode for the store directory.
	dirPermissions = 0700

	// filePermissions is the permission mode for slot files.
	filePermissions = 0600
)

var _ Store = (*FileStore)(nil)

// FileStore keeps each slot in its own JSON file inside a directory. Writes go to a
// temporary file that is renamed over the slot, so readers see either the old or the new
// document and never a partial one.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, apperrors.Wrapf(err, "creating token store directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Load(_ context.Context) (*token.Tokens, error) {
	data, err := f.read(SlotTokens)
	if err != nil {
		return nil, err
	}
	return decodeTokens(data), nil
}

func (f *FileStore) LoadUser(_ context.Context) (*users.User, error) {
	data, err := f.read(SlotUser)
	if err != nil {
		return nil, err
	}
	return decodeUser(data), nil
}

func (f *FileStore) Save(_ context.Context, tokens token.Tokens) error {
	data, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	return f.write(SlotTokens, data)
}

func (f *FileStore) SaveUser(_ context.Context, user users.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	return f.write(SlotUser, data)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, slot := range []string{SlotTokens, SlotUser} {
		if err := os.Remove(f.path(slot)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return apperrors.Wrapf(errors.Join(errs...), "clearing token store")
}

func (f *FileStore) path(slot string) string {
	return filepath.Join(f.dir, slot+".json")
}

func (f *FileStore) read(slot string) ([]byte, error) {
	data, err := os.ReadFile(f.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading %s slot", slot)
	}
	return data, nil
}

func (f *FileStore) write(slot string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+slot+"-*.tmp")
	if err != nil {
		return apperrors.Wrapf(err, "creating temp file for %s slot", slot)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "writing %s slot", slot)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "syncing %s slot", slot)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrapf(err, "closing %s slot", slot)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return apperrors.Wrapf(err, "chmod %s slot", slot)
	}
	if err := os.Rename(tmpName, f.path(slot)); err != nil {
		return apperrors.Wrapf(err, "replacing %s slot", slot)
	}
	return nil
}
