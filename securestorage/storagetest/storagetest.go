// Package storagetest holds the behaviour every securestorage implementation must share.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/securestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the SecureStorage contract. s must start empty.
func Run(t *testing.T, s securestorage.SecureStorage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is absent", func(t *testing.T) {
		v, ok, err := s.GetItem(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("set then get round trips", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "my-jwt", "abc"))
		v, ok, err := s.GetItem(ctx, "my-jwt")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "abc", v)
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "my-jwt", "first"))
		require.NoError(t, s.SetItem(ctx, "my-jwt", "second"))
		v, ok, err := s.GetItem(ctx, "my-jwt")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "second", v)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "a", "1"))
		require.NoError(t, s.SetItem(ctx, "b", "2"))
		require.NoError(t, s.DeleteItem(ctx, "a"))
		_, ok, err := s.GetItem(ctx, "a")
		require.NoError(t, err)
		require.False(t, ok)
		v, ok, err := s.GetItem(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2", v)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.SetItem(ctx, "my-jwt", "abc"))
		require.NoError(t, s.DeleteItem(ctx, "my-jwt"))
		require.NoError(t, s.DeleteItem(ctx, "my-jwt"))
		_, ok, err := s.GetItem(ctx, "my-jwt")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.SetItem(ctx, "concurrent", "value"))
			}()
		}
		wg.Wait()
		v, ok, err := s.GetItem(ctx, "concurrent")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "value", v)
	})
}
