// Package redisstore keeps secure storage items in Redis, for clients that share a
// session slot across processes (kiosk devices, test rigs).
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-auth-client/securestorage"
	"github.com/redis/go-redis/v9"
)

var _ securestorage.SecureStorage = (*Store)(nil)

// Store is a SecureStorage backed by plain Redis string keys.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New wraps an existing client. Keys are stored as "<prefix>:<key>".
func New(rdb redis.UniversalClient, prefix string) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("[redisstore.New] redis client is required")
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}
	value, err := s.rdb.Get(ctx, s.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) DeleteItem(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := s.rdb.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return nil
}
