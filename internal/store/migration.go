package store

import (
	"log/slog"

	"github.com/netplume/wifimgr-go/internal/models"
)

// migrateSettings fills in default values for fields that may be missing in
// settings files written by older daemon versions.
func migrateSettings(settings *models.Settings) {
	if settings.Version == 0 {
		// Pre-versioned files carried the portal timeout in minutes.
		if settings.PortalTimeoutSec > 0 && settings.PortalTimeoutSec <= 30 {
			slog.Warn("store: migrating portal timeout from minutes",
				"old", settings.PortalTimeoutSec)
			settings.PortalTimeoutSec *= 60
		}
		settings.Version = models.SettingsVersion
	}

	if settings.PortalTimeoutSec < 0 {
		slog.Warn("store: invalid portal timeout, using default",
			"value", settings.PortalTimeoutSec)
		settings.PortalTimeoutSec = models.DefaultPortalTimeoutSec
	}

	if settings.MinQuality < 0 || settings.MinQuality > 100 {
		slog.Warn("store: invalid min quality, using default",
			"value", settings.MinQuality)
		settings.MinQuality = models.DefaultMinQuality
	}

	// Oversized stored credentials would be rejected by every driver; drop
	// them so the portal fallback triggers instead of a connect loop.
	if len(settings.Credentials.SSID) > models.MaxSSIDLen ||
		len(settings.Credentials.Passphrase) > models.MaxPassphraseLen {
		slog.Warn("store: stored credentials exceed field bounds, clearing")
		settings.Credentials = models.Credentials{}
	}

	if len(settings.APSSID) > models.MaxSSIDLen {
		settings.APSSID = settings.APSSID[:models.MaxSSIDLen]
	}
}
