package models

import "encoding/json"

// Credentials is the single stored station identity/secret pair.
// Both values are treated as opaque strings by the persistence layer.
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
}

// Empty reports whether no credentials have been stored.
func (c Credentials) Empty() bool { return c.SSID == "" }

// Settings is the persisted runtime configuration document.
// Params holds the application parameter blob keyed by parameter key;
// its interpretation belongs to the params package.
type Settings struct {
	Version          int             `json:"version"`
	Credentials      Credentials     `json:"credentials"`
	Params           json.RawMessage `json:"params,omitempty"`
	PortalTimeoutSec int             `json:"portal_timeout_sec"`
	MinQuality       int             `json:"min_quality"`
	APSSID           string          `json:"ap_ssid,omitempty"`
	APSecret         string          `json:"ap_secret,omitempty"`
}

// DeepCopy returns a deep copy of the settings.
func (s Settings) DeepCopy() Settings {
	next := s
	if s.Params != nil {
		next.Params = make(json.RawMessage, len(s.Params))
		copy(next.Params, s.Params)
	}
	return next
}
