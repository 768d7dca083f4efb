package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/plan-session/internal/config"
	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
	"github.com/rs/zerolog/log"
)

// Slot names shared by all backends
const (
	SlotTokens = "tokens"
	SlotUser   = "user"
)

// Store is the durable holder of the current token pair and user.
type Store interface {
	// Load returns the persisted tokens, or nil if none are stored or the slot is malformed
	Load(ctx context.Context) (*token.Tokens, error)
	// LoadUser returns the persisted user, or nil if none is stored or the slot is malformed
	LoadUser(ctx context.Context) (*users.User, error)
	Save(ctx context.Context, tokens token.Tokens) error
	SaveUser(ctx context.Context, user users.User) error
	// Clear removes both slots
	Clear(ctx context.Context) error
}

// Open creates the backend selected by cfg. The returned close function releases any
// connections held by the backend.
func Open(cfg config.StoreConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.GetStoreBackend()) {
	case "", "file":
		s, err := NewFileStore(cfg.GetStorePath())
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "sqlite":
		s, err := OpenSQLiteStore(cfg.GetStorePath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s := NewRedisStoreFromAddr(cfg.GetRedisAddr(), cfg.GetRedisDB(), cfg.GetRedisPrefix())
		return s, s.Close, nil
	case "memory":
		return NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownStore, cfg.GetStoreBackend())
	}
}

func encodeTokens(t token.Tokens) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, apperrors.Wrapf(err, "encoding %s slot", SlotTokens)
	}
	return data, nil
}

func encodeUser(u users.User) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, apperrors.Wrapf(err, "encoding %s slot", SlotUser)
	}
	return data, nil
}

// decodeTokens returns nil for empty or malformed content
func decodeTokens(data []byte) *token.Tokens {
	if len(data) == 0 {
		return nil
	}
	var t token.Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		log.Warn().Err(err).Str("slot", SlotTokens).Msg("Ignoring malformed persisted slot")
		return nil
	}
	if !t.Valid() {
		log.Warn().Str("slot", SlotTokens).Msg("Ignoring incomplete persisted token pair")
		return nil
	}
	return &t
}

// decodeUser returns nil for empty or malformed content
func decodeUser(data []byte) *users.User {
	if len(data) == 0 {
		return nil
	}
	var u users.User
	if err := json.Unmarshal(data, &u); err != nil {
		log.Warn().Err(err).Str("slot", SlotUser).Msg("Ignoring malformed persisted slot")
		return nil
	}
	if u.ID == "" || !u.UserType.Valid() {
		log.Warn().Str("slot", SlotUser).Msg("Ignoring incomplete persisted user")
		return nil
	}
	return &u
}
