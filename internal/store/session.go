package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"polling-client/internal/observable"
)

// Profile is the non-secret cached identity of the logged-in user.
// Display data only, never consulted for authorization.
type Profile struct {
	UserID      string
	Email       string
	DisplayName string
}

type Field string

// Stable row keys, kept across upgrades.
const (
	FieldUserID      Field = "user_id"
	FieldEmail       Field = "user_email"
	FieldDisplayName Field = "user_name"
)

// SessionStore persists the profile fields in plain durable rows and
// exposes them as an observable stream. All three fields are written in
// one transaction and published in one emission, so observers never see a
// half-applied profile.
type SessionStore struct {
	db    *sql.DB
	value *observable.Value[Profile]
	log   *slog.Logger
}

func NewSessionStore(db *sql.DB, log *slog.Logger) (*SessionStore, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &SessionStore{db: db, log: log}

	current, err := s.read()
	if err != nil {
		// Degrade to an absent profile rather than failing startup.
		log.Warn("profile read failed, starting with empty profile", "error", err)
		current = Profile{}
	}
	s.value = observable.New(current)
	return s, nil
}

func (s *SessionStore) read() (Profile, error) {
	rows, err := s.db.Query(`SELECT key, value FROM profile`)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	defer rows.Close()

	var p Profile
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Profile{}, fmt.Errorf("scan profile row: %w", err)
		}
		switch Field(key) {
		case FieldUserID:
			p.UserID = value
		case FieldEmail:
			p.Email = value
		case FieldDisplayName:
			p.DisplayName = value
		}
	}
	return p, rows.Err()
}

// Save persists all fields atomically. A canceled context aborts the
// transaction before anything is visible.
func (s *SessionStore) Save(ctx context.Context, p Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile write: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO profile (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	for field, value := range map[Field]string{
		FieldUserID:      p.UserID,
		FieldEmail:       p.Email,
		FieldDisplayName: p.DisplayName,
	} {
		if _, err := tx.ExecContext(ctx, upsert, string(field), value); err != nil {
			return fmt.Errorf("write profile field %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile write: %w", err)
	}

	s.value.Set(p)
	return nil
}

// Clear resets every field to its absent representation.
func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile`); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	s.value.Set(Profile{})
	return nil
}

// Current returns the profile as of the last write.
func (s *SessionStore) Current() Profile {
	return s.value.Get()
}

// Observe streams the whole profile: the current value immediately, then
// one emission per Save or Clear.
func (s *SessionStore) Observe() (<-chan Profile, func()) {
	return s.value.Subscribe()
}

// ObserveField streams a single profile field.
func (s *SessionStore) ObserveField(f Field) (<-chan string, func()) {
	src, cancelSrc := s.value.Subscribe()
	out := make(chan string, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case p, ok := <-src:
				if !ok {
					return
				}
				val := fieldOf(p, f)
				// Latest-wins, single producer.
				select {
				case out <- val:
				default:
					select {
					case <-out:
					default:
					}
					out <- val
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSrc()
			close(done)
		})
	}
	return out, cancel
}

func fieldOf(p Profile, f Field) string {
	switch f {
	case FieldUserID:
		return p.UserID
	case FieldEmail:
		return p.Email
	case FieldDisplayName:
		return p.DisplayName
	}
	return ""
}
