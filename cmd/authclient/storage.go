package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/securestorage"
	"github.com/jrsteele09/go-auth-client/securestorage/filestore"
	"github.com/jrsteele09/go-auth-client/securestorage/memstore"
	"github.com/jrsteele09/go-auth-client/securestorage/redisstore"
	"github.com/jrsteele09/go-auth-client/securestorage/sqlitestore"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// openStorage builds the configured secure storage and a func releasing its resources.
func openStorage(c config.StorageConfig) (securestorage.SecureStorage, func() error, error) {
	noop := func() error { return nil }

	switch c.GetTokenStorage() {
	case config.StorageMemory:
		return memstore.New(), noop, nil

	case config.StorageSQLite:
		s, err := sqlitestore.Open(c.GetTokenStoragePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return s, s.Close, nil

	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", c.GetRedisAddr(), err)
		}
		s, err := redisstore.New(rdb, c.GetRedisPrefix())
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return s, rdb.Close, nil
	}

	passphrase := c.GetTokenStoragePassphrase()
	if passphrase == "" {
		return nil, nil, fmt.Errorf("TOKEN_STORAGE_PASSPHRASE is required for file storage")
	}
	s, err := filestore.New(c.GetTokenStoragePath(), passphrase)
	if err != nil {
		return nil, nil, err
	}
	return s, noop, nil
}
