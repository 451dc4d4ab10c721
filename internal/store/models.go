package store

import "time"

// Preferences is a viewer's saved chart configuration. Values are stored as
// plain strings; validation belongs to the state package.
type Preferences struct {
	Profile   string
	Theme     string
	ViewMode  string
	Zoom      int
	LineStyle string
	Visible   []string // Decoded from JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Well-known setting keys.
const (
	SettingServerURL      = "server_url"
	SettingDefaultProfile = "default_profile"
)
