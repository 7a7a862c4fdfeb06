// Package store persists OAuth tokens and the sticky per-provider
// authorization state in a small SQLite database. Events are never
// cached here; the calendar backend stays the single source of truth.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

// ErrNoToken is returned when no token has been saved for a provider.
var ErrNoToken = errors.New("no token stored")

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	provider TEXT PRIMARY KEY,
	token    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_state (
	provider TEXT PRIMARY KEY,
	state    TEXT NOT NULL
);
`

// Store is a single-process credential store. One Store is opened at
// startup and shared by every adapter.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the saved OAuth token for a provider.
func (s *Store) Token(provider string) (*oauth2.Token, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT token FROM tokens WHERE provider = ?", provider).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// SaveToken stores or replaces the token for a provider.
func (s *Store) SaveToken(provider string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	_, err = s.db.Exec("INSERT OR REPLACE INTO tokens (provider, token) VALUES (?, ?)", provider, raw)
	return err
}

// DeleteToken removes the token for a provider, if any.
func (s *Store) DeleteToken(provider string) error {
	_, err := s.db.Exec("DELETE FROM tokens WHERE provider = ?", provider)
	return err
}

// AuthState returns the recorded authorization state for a provider,
// or "" when none was recorded.
func (s *Store) AuthState(provider string) (string, error) {
	var state string
	err := s.db.QueryRow("SELECT state FROM auth_state WHERE provider = ?", provider).Scan(&state)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read auth state: %w", err)
	}
	return state, nil
}

// SetAuthState records the authorization state for a provider. Denied
// is recorded here so a refusal sticks across process restarts.
func (s *Store) SetAuthState(provider, state string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO auth_state (provider, state) VALUES (?, ?)", provider, state)
	return err
}

// ClearAuthState removes the recorded state (used when the user
// revisits the provider's settings surface out of band).
func (s *Store) ClearAuthState(provider string) error {
	_, err := s.db.Exec("DELETE FROM auth_state WHERE provider = ?", provider)
	return err
}
