package store

import "context"

// Store defines the interface for preference storage operations
type Store interface {
	// Preference profiles
	CreateProfile(ctx context.Context, defaults Preferences) (*Preferences, error)
	GetPreferences(ctx context.Context, profile string) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs *Preferences) error
	ListProfiles(ctx context.Context) ([]*Preferences, error)
	DeletePreferences(ctx context.Context, profile string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}
