package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-client/securestorage/filestore"
	"github.com/jrsteele09/go-auth-client/securestorage/storagetest"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*filestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.enc")
	s, err := filestore.New(path, "correct horse battery staple")
	require.NoError(t, err)
	return s, path
}

func TestFileStore(t *testing.T) {
	s, _ := newTestStore(t)
	storagetest.Run(t, s)
}

func TestNewRequiresPathAndPassphrase(t *testing.T) {
	_, err := filestore.New("", "pass")
	require.Error(t, err)
	_, err = filestore.New("session.enc", "")
	require.Error(t, err)
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.SetItem(ctx, "my-jwt", "abc"))

	reopened, err := filestore.New(path, "correct horse battery staple")
	require.NoError(t, err)
	v, ok, err := reopened.GetItem(ctx, "my-jwt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)
}

func TestFileIsEncryptedAndPrivate(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.SetItem(ctx, "my-jwt", "super-secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWrongPassphraseFails(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.SetItem(ctx, "my-jwt", "abc"))

	other, err := filestore.New(path, "wrong")
	require.NoError(t, err)
	_, _, err = other.GetItem(ctx, "my-jwt")
	require.Error(t, err)
}

func TestCorruptFileFails(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, _, err := s.GetItem(context.Background(), "my-jwt")
	require.Error(t, err)
}
