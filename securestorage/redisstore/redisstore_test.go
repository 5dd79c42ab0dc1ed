package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-client/securestorage/redisstore"
	"github.com/jrsteele09/go-auth-client/securestorage/storagetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, prefix string) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	st, err := redisstore.New(rdb, prefix)
	require.NoError(t, err)
	return st, mr
}

func TestRedisStore(t *testing.T) {
	st, _ := newTestStore(t, "authclient")
	storagetest.Run(t, st)
}

func TestKeysArePrefixed(t *testing.T) {
	st, mr := newTestStore(t, "authclient")
	require.NoError(t, st.SetItem(context.Background(), "my-jwt", "abc"))

	v, err := mr.Get("authclient:my-jwt")
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}

func TestUnavailableServer(t *testing.T) {
	st, mr := newTestStore(t, "")
	mr.Close()

	_, _, err := st.GetItem(context.Background(), "my-jwt")
	require.Error(t, err)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := redisstore.New(nil, "p")
	require.Error(t, err)
}
