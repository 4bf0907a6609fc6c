package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"polling-client/internal/observable"
	"polling-client/internal/platform/secretbox"
)

// credentialName is the fixed record name, so a reinstall without a data
// wipe resumes the session on the next Load.
const credentialName = "auth_token"

// CredentialStore holds the single session token, encrypted at rest.
// Reads are synchronous; any decrypt failure (corruption, rotated key)
// degrades to "no credential" so the client is never locked out of its
// own data.
type CredentialStore struct {
	db       *sql.DB
	key      []byte
	presence *observable.Value[bool]
	log      *slog.Logger
}

func NewCredentialStore(db *sql.DB, key []byte, log *slog.Logger) *CredentialStore {
	if log == nil {
		log = slog.Default()
	}
	s := &CredentialStore{db: db, key: key, log: log}
	s.presence = observable.New(false)
	s.presence.Set(s.Load() != "")
	return s
}

// Save overwrites the stored token wholesale.
func (s *CredentialStore) Save(token string) error {
	sealed, err := secretbox.Seal(s.key, []byte(token))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credential (name, record) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET record = excluded.record
	`, credentialName, sealed)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.presence.Set(token != "")
	return nil
}

// Load returns the stored token, or the empty string when nothing is
// stored or the record cannot be decrypted.
func (s *CredentialStore) Load() string {
	var sealed []byte
	err := s.db.QueryRow(`SELECT record FROM credential WHERE name = ?`, credentialName).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	if err != nil {
		s.log.Warn("credential read failed, treating as logged out", "error", err)
		return ""
	}

	token, err := secretbox.Open(s.key, sealed)
	if err != nil {
		s.log.Warn("credential record unreadable, treating as logged out", "error", err)
		return ""
	}
	return string(token)
}

// Clear removes the credential. Clearing an empty store is a no-op success.
func (s *CredentialStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM credential WHERE name = ?`, credentialName); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.presence.Set(false)
	return nil
}

// Observe streams credential presence: an immediate current value, then an
// update after every Save or Clear. Logout elsewhere in the process reaches
// dependents through this stream.
func (s *CredentialStore) Observe() (<-chan bool, func()) {
	return s.presence.Subscribe()
}
