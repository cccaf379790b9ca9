package models

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase,omitempty"`
}

// ParamView is the portal-facing description of one configuration parameter.
type ParamView struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Default     string `json:"default"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status       Status `json:"status"`
	IP           string `json:"ip,omitempty"`
	SSID         string `json:"ssid,omitempty"`
	RetryCount   int    `json:"retry_count"`
	PortalActive bool   `json:"portal_active"`
	APSSID       string `json:"ap_ssid,omitempty"`
	Version      string `json:"version"`
}

// Event is published on the internal bus and mirrored to SSE clients.
type Event struct {
	Type     string `json:"type"` // "status" | "scan" | "params" | "portal" | "online"
	Status   Status `json:"status"`
	IP       string `json:"ip,omitempty"`
	SSID     string `json:"ssid,omitempty"`
	Networks int    `json:"networks,omitempty"` // scan events: result count
	Online   *bool  `json:"online,omitempty"`   // online events
	Detail   string `json:"detail,omitempty"`
}
