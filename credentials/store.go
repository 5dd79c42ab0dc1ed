// Package credentials persists the single opaque session credential.
package credentials

import (
	"context"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/securestorage"
)

// DefaultKey is the storage slot used by earlier releases of the mobile client.
const DefaultKey = "my-jwt"

// Store saves, loads and clears one credential in a SecureStorage slot.
// Every failure is returned wrapped in errors.ErrStorage; callers decide whether it is fatal.
type Store struct {
	storage securestorage.SecureStorage
	key     string
}

type StoreOption func(*Store)

// WithKey overrides the storage slot.
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func NewStore(storage securestorage.SecureStorage, options ...StoreOption) *Store {
	s := &Store{storage: storage, key: DefaultKey}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Save replaces the persisted credential.
func (s *Store) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.ErrEmptyCredential
	}
	if err := s.storage.SetItem(ctx, s.key, token); err != nil {
		return fmt.Errorf("%w: save credential: %w", errors.ErrStorage, err)
	}
	return nil
}

// Load returns the persisted credential; ok is false when none is stored.
// An empty stored value is reported as absent.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	token, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		return "", false, fmt.Errorf("%w: load credential: %w", errors.ErrStorage, err)
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Clear deletes the persisted credential. Clearing an empty slot succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.DeleteItem(ctx, s.key); err != nil {
		return fmt.Errorf("%w: clear credential: %w", errors.ErrStorage, err)
	}
	return nil
}

// Expiry reads the exp claim of a JWT credential without verifying its signature.
// The token stays opaque to the client; ok is false for anything that is not a JWT with exp.
func Expiry(token string) (time.Time, bool) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether token is a JWT whose exp is at or before now.
func Expired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	return ok && !now.Before(exp)
}
