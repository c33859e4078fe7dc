// Package redis keeps session state in Redis with a sliding expiry.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-pricing/internal/storage"
)

// Store namespaces session keys as <prefix>:<session>:<key>.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore returns a Store. A zero ttl keeps keys forever.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "kart"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Session returns the key/value view of session id.
func (s *Store) Session(id string) storage.KV {
	return sessionKV{store: s, id: id}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(id, key string) string {
	return s.prefix + ":" + id + ":" + key
}

type sessionKV struct {
	store *Store
	id    string
}

func (kv sessionKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k := kv.store.key(kv.id, key)
	v, err := kv.store.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %q", k)
	}
	if kv.store.ttl > 0 {
		if err := kv.store.client.Expire(ctx, k, kv.store.ttl).Err(); err != nil {
			return nil, false, errors.Wrapf(err, "touch %q", k)
		}
	}
	return v, true, nil
}

func (kv sessionKV) Set(ctx context.Context, key string, value []byte) error {
	k := kv.store.key(kv.id, key)
	if err := kv.store.client.Set(ctx, k, value, kv.store.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %q", k)
	}
	return nil
}

func (kv sessionKV) Delete(ctx context.Context, key string) error {
	k := kv.store.key(kv.id, key)
	if err := kv.store.client.Del(ctx, k).Err(); err != nil {
		return errors.Wrapf(err, "delete %q", k)
	}
	return nil
}
