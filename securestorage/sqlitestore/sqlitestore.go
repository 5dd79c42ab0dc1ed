// Package sqlitestore keeps secure storage items in a local SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-auth-client/securestorage"
)

const dbTimeLayout = "2006-01-02 15:04:05"

var _ securestorage.SecureStorage = (*Store)(nil)

// Store is a SecureStorage backed by a single SQLite table.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("[sqlitestore.Open] path is required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("[sqlitestore.Open] create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.Open] open: %w", err)
	}
	// a single connection keeps ":memory:" databases and write ordering consistent
	db.SetMaxOpenConns(1)

	s := &Store{DB: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS secure_items (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("[sqlitestore.migrate] create table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO secure_items (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM secure_items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitestore: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) DeleteItem(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM secure_items WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlitestore: delete %q: %w", key, err)
	}
	return nil
}
