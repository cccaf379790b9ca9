// Package identity derives the device identity used for the default AP
// name and mDNS registration.
package identity

import (
	"os"
	"strings"
)

// machineIDPath is the canonical systemd machine identity file.
const machineIDPath = "/etc/machine-id"

// Hostname returns the system hostname.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "wifimgr"
	}
	return h
}

// MachineID returns the lowercase machine identity string, falling back to
// the hostname when /etc/machine-id is unreadable.
func MachineID() string {
	data, err := os.ReadFile(machineIDPath)
	if err != nil {
		return Hostname()
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return Hostname()
	}
	return strings.ToLower(id)
}

// ShortID returns the last 4 characters of the machine identity, the stable
// per-device suffix used in the default AP SSID.
func ShortID() string {
	id := MachineID()
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	return id
}

// DefaultAPSSID builds the provisioning AP name for a product, e.g.
// "Netplume-Setup-7f3a". Used when no AP SSID is configured.
func DefaultAPSSID(product string) string {
	if product == "" {
		product = "Wifimgr"
	}
	return product + "-Setup-" + ShortID()
}

// OnlineStatus reports the last connectivity probe result, read from the
// status file the maintenance watchdog writes. False when the file is
// missing.
func OnlineStatus() bool {
	data, err := os.ReadFile("/tmp/wifimgr-online")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "online"
}
