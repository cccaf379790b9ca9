// Package radio provides the radio abstraction layer for wifimgr.
// It defines the Driver interface and event types used by the real
// wpa_supplicant D-Bus driver, the serial AT-modem driver, and the mock.
package radio

import (
	"context"
	"fmt"

	"github.com/netplume/wifimgr-go/internal/models"
)

// Mode is the operating mode of the radio interface.
type Mode int

const (
	ModeOff Mode = iota
	ModeStation
	ModeAP
	ModeAPStation
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeStation:
		return "station"
	case ModeAP:
		return "ap"
	case ModeAPStation:
		return "ap+station"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ScanCapable reports whether a scan may be issued in this mode.
func (m Mode) ScanCapable() bool {
	return m == ModeStation || m == ModeAPStation
}

// EventType identifies an asynchronous radio event.
type EventType int

const (
	EventStationStarted EventType = iota
	EventStationConnected
	EventStationDisconnected
	EventAPStarted
	EventAPStopped
	EventStaJoinedAP
	EventStaLeftAP
	EventScanDone
	EventAddressAcquired
	EventAddressLost
)

var eventNames = [...]string{
	EventStationStarted:      "station_started",
	EventStationConnected:    "station_connected",
	EventStationDisconnected: "station_disconnected",
	EventAPStarted:           "ap_started",
	EventAPStopped:           "ap_stopped",
	EventStaJoinedAP:         "sta_joined_ap",
	EventStaLeftAP:           "sta_left_ap",
	EventScanDone:            "scan_done",
	EventAddressAcquired:     "address_acquired",
	EventAddressLost:         "address_lost",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(t))
	}
	return eventNames[t]
}

// Event is one asynchronous notification from the radio layer.
// Addr is set for EventAddressAcquired, Reason for disconnect events,
// MAC for AP join/leave events.
type Event struct {
	Type   EventType
	Addr   string
	Reason string
	MAC    string
}

// APConfig describes the self-hosted access point.
type APConfig struct {
	SSID   string
	Secret string // empty or >= 8 chars; WPA2 iff set
	Chan   int
	Hidden bool
}

// Driver is the radio abstraction interface.
// Commands are synchronous and safe for concurrent use; state changes are
// reported asynchronously on the Events channel, strictly in emission order.
type Driver interface {
	// Init initializes the driver. Must be called before any other method.
	Init(ctx context.Context) error

	// SetMode switches the radio operating mode.
	SetMode(ctx context.Context, mode Mode) error

	// Mode returns the current operating mode.
	Mode() Mode

	// SetStationConfig stores the station credentials for the next Connect.
	SetStationConfig(ctx context.Context, creds models.Credentials) error

	// SetAPConfig configures the self-hosted access point.
	SetAPConfig(ctx context.Context, cfg APConfig) error

	// Connect starts association with the configured station network.
	// Completion is reported via EventStationConnected/EventAddressAcquired.
	Connect(ctx context.Context) error

	// Disconnect drops the current association.
	Disconnect(ctx context.Context) error

	// ScanStart issues a non-blocking scan. Completion is reported via
	// EventScanDone; results are fetched with ScanResults.
	ScanStart(ctx context.Context) error

	// ScanResults retrieves the raw results of the last completed scan.
	ScanResults(ctx context.Context) ([]models.Network, error)

	// Events returns the driver's event channel. The channel is closed by Close.
	Events() <-chan Event

	// IsReal returns true for a real radio driver, false for a mock.
	IsReal() bool

	// Close releases driver resources and closes the event channel.
	Close() error
}
