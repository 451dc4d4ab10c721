package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
    profile TEXT PRIMARY KEY,
    theme TEXT NOT NULL DEFAULT 'light',
    view_mode TEXT NOT NULL DEFAULT 'day',
    zoom INTEGER NOT NULL DEFAULT 100,
    line_style TEXT NOT NULL DEFAULT 'solid',
    visible TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_preferences_updated ON preferences(updated_at);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProfile stores defaults under a fresh profile id.
func (s *SQLiteStore) CreateProfile(ctx context.Context, defaults Preferences) (*Preferences, error) {
	prefs := defaults
	prefs.Profile = uuid.NewString()

	visibleJSON, err := json.Marshal(nonNilStrings(prefs.Visible))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal visible variations: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (profile, theme, view_mode, zoom, line_style, visible, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		prefs.Profile, prefs.Theme, prefs.ViewMode, prefs.Zoom, prefs.LineStyle, string(visibleJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	prefs.CreatedAt = time.Unix(now, 0)
	prefs.UpdatedAt = time.Unix(now, 0)
	return &prefs, nil
}

func (s *SQLiteStore) GetPreferences(ctx context.Context, profile string) (*Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile, theme, view_mode, zoom, line_style, visible, created_at, updated_at
		 FROM preferences WHERE profile = ?`, profile,
	)

	prefs, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences overwrites an existing profile.
func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs *Preferences) error {
	visibleJSON, err := json.Marshal(nonNilStrings(prefs.Visible))
	if err != nil {
		return fmt.Errorf("failed to marshal visible variations: %w", err)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`UPDATE preferences SET theme = ?, view_mode = ?, zoom = ?, line_style = ?, visible = ?, updated_at = ?
		 WHERE profile = ?`,
		prefs.Theme, prefs.ViewMode, prefs.Zoom, prefs.LineStyle, string(visibleJSON), now, prefs.Profile,
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	prefs.UpdatedAt = time.Unix(now, 0)
	return nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*Preferences, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT profile, theme, view_mode, zoom, line_style, visible, created_at, updated_at
		 FROM preferences ORDER BY updated_at DESC, profile`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Preferences
	for rows.Next() {
		prefs, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, prefs)
	}

	return profiles, rows.Err()
}

func (s *SQLiteStore) DeletePreferences(ctx context.Context, profile string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE profile = ?`, profile)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row scanner) (*Preferences, error) {
	var prefs Preferences
	var visibleJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&prefs.Profile, &prefs.Theme, &prefs.ViewMode, &prefs.Zoom, &prefs.LineStyle,
		&visibleJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(visibleJSON), &prefs.Visible); err != nil {
		return nil, fmt.Errorf("failed to unmarshal visible variations: %w", err)
	}

	prefs.CreatedAt = time.Unix(createdAt, 0)
	prefs.UpdatedAt = time.Unix(updatedAt, 0)
	return &prefs, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Store = (*SQLiteStore)(nil)
