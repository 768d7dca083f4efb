package tokenstore

import (
	"context"
	"errors"

	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each slot under "<prefix>:<slot>". Writes are single SET commands
// and Clear deletes both keys in one DEL.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "plansession"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func NewRedisStoreFromAddr(addr string, db int, prefix string) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: addr, DB: db}), prefix)
}

func (r *RedisStore) Load(ctx context.Context) (*token.Tokens, error) {
	data, err := r.get(ctx, SlotTokens)
	if err != nil {
		return nil, err
	}
	return decodeTokens(data), nil
}

func (r *RedisStore) LoadUser(ctx context.Context) (*users.User, error) {
	data, err := r.get(ctx, SlotUser)
	if err != nil {
		return nil, err
	}
	return decodeUser(data), nil
}

func (r *RedisStore) Save(ctx context.Context, tokens token.Tokens) error {
	data, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	return apperrors.Wrapf(r.rdb.Set(ctx, r.key(SlotTokens), data, 0).Err(), "writing %s slot", SlotTokens)
}

func (r *RedisStore) SaveUser(ctx context.Context, user users.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	return apperrors.Wrapf(r.rdb.Set(ctx, r.key(SlotUser), data, 0).Err(), "writing %s slot", SlotUser)
}

func (r *RedisStore) Clear(ctx context.Context) error {
	err := r.rdb.Del(ctx, r.key(SlotTokens), r.key(SlotUser)).Err()
	return apperrors.Wrapf(err, "clearing redis token store")
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) key(slot string) string {
	return r.prefix + ":" + slot
}

func (r *RedisStore) get(ctx context.Context, slot string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading %s slot", slot)
	}
	return data, nil
}
