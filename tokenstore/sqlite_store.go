package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_slots (
	slot       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
)`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the slots as rows of a single table. Each write is a single-row
// upsert, so a concurrent Load sees either the previous or the new value.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) session.db inside dir. If dir already names a
// .db file it is used directly.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	path := dir
	if filepath.Ext(dir) != ".db" {
		path = filepath.Join(dir, "session.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, apperrors.Wrapf(err, "creating sqlite directory")
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening sqlite token store")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, apperrors.Wrapf(err, "creating session_slots table")
	}
	if err := os.Chmod(path, filePermissions); err != nil {
		db.Close()
		return nil, apperrors.Wrapf(err, "chmod sqlite token store")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*token.Tokens, error) {
	data, err := s.get(ctx, SlotTokens)
	if err != nil {
		return nil, err
	}
	return decodeTokens(data), nil
}

func (s *SQLiteStore) LoadUser(ctx context.Context) (*users.User, error) {
	data, err := s.get(ctx, SlotUser)
	if err != nil {
		return nil, err
	}
	return decodeUser(data), nil
}

func (s *SQLiteStore) Save(ctx context.Context, tokens token.Tokens) error {
	data, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	return s.put(ctx, SlotTokens, data)
}

func (s *SQLiteStore) SaveUser(ctx context.Context, user users.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	return s.put(ctx, SlotUser, data)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_slots WHERE slot IN (?, ?)`, SlotTokens, SlotUser)
	return apperrors.Wrapf(err, "clearing sqlite token store")
}

// SetRaw overwrites a slot with arbitrary content
func (s *SQLiteStore) SetRaw(ctx context.Context, slot string, data []byte) error {
	return s.put(ctx, slot, data)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, slot string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_slots WHERE slot = ?`, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading %s slot", slot)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) put(ctx context.Context, slot string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_slots (slot, value, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		slot, string(data))
	return apperrors.Wrapf(err, "writing %s slot", slot)
}
