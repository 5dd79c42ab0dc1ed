package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-auth-client/securestorage"
)

var _ securestorage.SecureStorage = (*InMemoryStore)(nil)

// InMemoryStore is a map backed SecureStorage. Values do not survive a restart.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func New() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]string),
	}
}

func (s *InMemoryStore) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *InMemoryStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

func (s *InMemoryStore) DeleteItem(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key) // Already doesn't exist, no error
	return nil
}

// Len reports the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
