// Package filestore persists secure storage items in a single encrypted file.
//
// The file holds a JSON envelope whose payload is the item map sealed with
// XChaCha20-Poly1305. The key is derived from a passphrase with argon2id and a
// random per-file salt stored in the envelope.
package filestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-auth-client/securestorage"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
)

var additionalData = []byte("go-auth-client/filestore/v1")

var _ securestorage.SecureStorage = (*Store)(nil)

type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// Store is a SecureStorage backed by one encrypted file.
type Store struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	aead cipher.AEAD
}

// New returns a Store for path. The file and its directory are created on first write.
func New(path, passphrase string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore.New] path is required")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("[filestore.New] passphrase is required")
	}
	return &Store{path: path, passphrase: []byte(passphrase)}, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	items[key] = value
	return s.write(items)
}

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return "", false, err
	}
	value, ok := items[key]
	return value, ok, nil
}

func (s *Store) DeleteItem(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.write(items)
}

// read decrypts the current file. A missing file is an empty store.
func (s *Store) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("filestore: decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("filestore: unsupported envelope version %d", env.Version)
	}
	aead, err := s.cipherFor(env.Salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, additionalData)
	if err != nil {
		return nil, fmt.Errorf("filestore: decrypt: %w", err)
	}

	items := make(map[string]string)
	if err := json.Unmarshal(plain, &items); err != nil {
		return nil, fmt.Errorf("filestore: decode items: %w", err)
	}
	return items, nil
}

func (s *Store) write(items map[string]string) error {
	if s.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("filestore: generate salt: %w", err)
		}
		if _, err := s.cipherFor(salt); err != nil {
			return err
		}
	}

	plain, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("filestore: encode items: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("filestore: generate nonce: %w", err)
	}
	raw, err := json.Marshal(envelope{
		Version: envelopeVersion,
		Salt:    s.salt,
		Nonce:   nonce,
		Data:    s.aead.Seal(nil, nonce, plain, additionalData),
	})
	if err != nil {
		return fmt.Errorf("filestore: encode envelope: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("filestore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".filestore-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filestore: replace %s: %w", s.path, err)
	}
	return nil
}

// cipherFor derives (or reuses) the AEAD for salt. Must be called with s.mu held.
func (s *Store) cipherFor(salt []byte) (cipher.AEAD, error) {
	if s.aead != nil && string(s.salt) == string(salt) {
		return s.aead, nil
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("filestore: invalid salt length %d", len(salt))
	}
	key := argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("filestore: new xchacha20 cipher: %w", err)
	}
	s.salt = append([]byte(nil), salt...)
	s.aead = aead
	return aead, nil
}
