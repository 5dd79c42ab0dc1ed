package config

import (
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// StorageBackend selects the secure storage implementation holding the credential.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
)

const (
	tokenStorageVar           = "TOKEN_STORAGE"
	tokenStoragePathVar       = "TOKEN_STORAGE_PATH"
	tokenStoragePassphraseVar = "TOKEN_STORAGE_PASSPHRASE"
	tokenStorageKeyVar        = "TOKEN_STORAGE_KEY"
	redisAddrVar              = "REDIS_ADDR"
	redisPrefixVar            = "REDIS_PREFIX"
)

type StorageConfig interface {
	GetTokenStorage() StorageBackend
	GetTokenStoragePath() string
	GetTokenStoragePassphrase() string
	GetTokenStorageKey() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type Storage struct {
	file *File
}

var _ StorageConfig = Storage{}

func (s Storage) GetTokenStorage() StorageBackend {
	raw := strings.ToLower(GetEnv(tokenStorageVar, utils.FirstNonEmpty(s.file.Storage.Backend, string(StorageFile))))
	switch b := StorageBackend(raw); b {
	case StorageMemory, StorageFile, StorageSQLite, StorageRedis:
		return b
	}
	return StorageFile
}

// GetTokenStoragePath is the file or database path for the file and sqlite backends.
func (s Storage) GetTokenStoragePath() string {
	def := "./data/session.enc"
	if s.GetTokenStorage() == StorageSQLite {
		def = "./data/session.db"
	}
	return GetEnv(tokenStoragePathVar, utils.FirstNonEmpty(s.file.Storage.Path, def))
}

func (s Storage) GetTokenStoragePassphrase() string {
	return GetEnv(tokenStoragePassphraseVar, s.file.Storage.Passphrase)
}

// GetTokenStorageKey is the storage key of the single credential slot.
func (s Storage) GetTokenStorageKey() string {
	return GetEnv(tokenStorageKeyVar, utils.FirstNonEmpty(s.file.Storage.Key, "my-jwt"))
}

func (s Storage) GetRedisAddr() string {
	return GetEnv(redisAddrVar, utils.FirstNonEmpty(s.file.Storage.RedisAddr, "localhost:6379"))
}

func (s Storage) GetRedisPrefix() string {
	return GetEnv(redisPrefixVar, utils.FirstNonEmpty(s.file.Storage.RedisPrefix, "authclient"))
}
