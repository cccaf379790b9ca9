// Package store handles loading and saving wifimgr runtime settings.
package store

import "github.com/netplume/wifimgr-go/internal/models"

// Store is the interface for persisting runtime settings.
type Store interface {
	// Load loads the current settings. Returns DefaultSettings if no file exists.
	Load() (*models.Settings, error)

	// Save persists the settings. Implementations may debounce rapid saves.
	Save(settings *models.Settings) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending settings.
	Flush() error
}
