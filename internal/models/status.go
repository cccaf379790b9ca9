// Package models defines the data structures shared across the wifimgr daemon.
// JSON field names match the wire format served by the configuration portal.
package models

import "fmt"

// Status is the connection status of the managed interface.
// Exactly one value is authoritative at a time; only the manager's event
// loop and portal lifecycle calls may change it.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusApMode
	StatusConfigPortal
	StatusFailed
)

var statusNames = [...]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusApMode:       "ap_mode",
	StatusConfigPortal: "config_portal",
	StatusFailed:       "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status as its lowercase name for JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a lowercase status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Security is the authentication mode reported for a scanned network.
type Security int

const (
	SecurityOpen Security = iota
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPA3
)

var securityNames = [...]string{
	SecurityOpen: "open",
	SecurityWEP:  "wep",
	SecurityWPA:  "wpa",
	SecurityWPA2: "wpa2",
	SecurityWPA3: "wpa3",
}

func (a Security) String() string {
	if a < 0 || int(a) >= len(securityNames) {
		return fmt.Sprintf("security(%d)", int(a))
	}
	return securityNames[a]
}

// MarshalText encodes the security mode as its lowercase name.
func (a Security) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a lowercase security mode name.
func (a *Security) UnmarshalText(text []byte) error {
	for i, name := range securityNames {
		if name == string(text) {
			*a = Security(i)
			return nil
		}
	}
	return fmt.Errorf("unknown security mode %q", text)
}

// Network is a single scanned access point as seen by the radio.
type Network struct {
	SSID     string   `json:"ssid"`
	RSSI     int      `json:"rssi"`    // dBm, negative
	Quality  int      `json:"quality"` // 0-100%, derived from RSSI
	Security Security `json:"security"`
	Hidden   bool     `json:"hidden,omitempty"`
}
