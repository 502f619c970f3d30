package datastore

import (
	"context"
	"encoding/json"
	"time"
)

// Marker is the persisted record of a completed install.
type Marker struct {
	InstalledAt time.Time `json:"installed_at"`
	Fingerprint string    `json:"fingerprint"`
	Device      string    `json:"device"`
	SpecVersion string    `json:"spec_version,omitempty"`
	Templates   []string  `json:"templates,omitempty"`

	// Corrupt is set when a marker file exists but does not parse.
	Corrupt bool `json:"-"`
}

// Encode returns the on-disk representation.
func (m Marker) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Matches reports whether the marker records an install with fingerprint.
func (m *Marker) Matches(fingerprint string) bool {
	return m != nil && !m.Corrupt && m.Fingerprint == fingerprint
}

// DataStore reads and writes the installation marker.
type DataStore interface {
	// GetMarker returns the marker, or nil when none exists.
	GetMarker(ctx context.Context) (*Marker, error)

	// NeedsInstall reports whether an install should run. With force the
	// marker is not read at all.
	NeedsInstall(ctx context.Context, force bool) (bool, *Marker, error)

	// RecordInstall atomically writes or replaces the marker.
	RecordInstall(ctx context.Context, m Marker) error

	// Path is the marker location on the target.
	Path() string
}
