// Package store holds the client's durable local state: one encrypted
// credential record and the plain session profile fields, both in an
// embedded sqlite database under the data directory.
package store

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"polling-client/internal/platform/secretbox"
)

const schema = `
CREATE TABLE IF NOT EXISTS credential (
    name   TEXT PRIMARY KEY,
    record BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS profile (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Open opens (or creates) the client database and bootstraps the schema.
// Safe to call on an existing database.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// Key resolves the credential encryption key: the configured base64 value
// when set, otherwise a keyfile in the data directory, generated on first
// run with owner-only permissions.
func Key(configured, dataDir string) ([]byte, error) {
	if configured != "" {
		key, err := base64.StdEncoding.DecodeString(configured)
		if err != nil {
			return nil, fmt.Errorf("decode POLL_SECRET_KEY: %w", err)
		}
		if len(key) != secretbox.KeySize {
			return nil, secretbox.ErrInvalidKey
		}
		return key, nil
	}

	path := filepath.Join(dataDir, "client.key")
	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil || len(key) != secretbox.KeySize {
			return nil, fmt.Errorf("keyfile %s is corrupt", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}

	key, err := secretbox.NewKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write keyfile: %w", err)
	}
	return key, nil
}
