package models

// Tunables shared across packages. These mirror the defaults baked into the
// portal firmware this daemon replaces.
const (
	// AppVersion is reported in /api/status and the mDNS TXT record.
	AppVersion = "0.4.1"

	SettingsVersion = 1

	// MaxRetries is the number of consecutive reconnect attempts after a
	// disassociation before the manager gives up and reports disconnected.
	MaxRetries = 3

	// MaxScanResults bounds the scan snapshot; excess entries are truncated.
	MaxScanResults = 20

	// MaxParams bounds the parameter store.
	MaxParams = 16

	// MaxSSIDLen and MaxPassphraseLen are the 802.11 field bounds.
	MaxSSIDLen       = 32
	MaxPassphraseLen = 64

	// MinAPSecretLen is the shortest secret accepted for a WPA2 AP; anything
	// shorter falls back to an open AP.
	MinAPSecretLen = 8

	DefaultPortalTimeoutSec = 180
	DefaultMinQuality       = 8
)

// DefaultSettings returns the settings used when no file exists on disk.
func DefaultSettings() Settings {
	return Settings{
		Version:          SettingsVersion,
		PortalTimeoutSec: DefaultPortalTimeoutSec,
		MinQuality:       DefaultMinQuality,
	}
}

// QualityFromRSSI maps a raw dBm reading onto the 0-100% scale shown in the
// portal. The steps match what operators are used to seeing.
func QualityFromRSSI(rssi int) int {
	switch {
	case rssi >= -50:
		return 100
	case rssi >= -60:
		return 90
	case rssi >= -70:
		return 70
	case rssi >= -80:
		return 50
	case rssi >= -90:
		return 25
	default:
		return 10
	}
}
