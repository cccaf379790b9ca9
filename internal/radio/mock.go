package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/netplume/wifimgr-go/internal/models"
)

// eventBufferSize bounds the mock's event channel. Tests that emit more
// events than this without a consumer would block, which is itself a bug.
const eventBufferSize = 32

// Mock is a thread-safe in-memory radio driver for testing and development.
// Visible networks are scripted with SetVisibleNetworks; Connect succeeds
// against any scripted network whose SSID matches the station config.
type Mock struct {
	mu          sync.Mutex
	mode        Mode
	station     models.Credentials
	ap          APConfig
	visible     []models.Network
	events      chan Event
	closed      bool
	autoJoin    bool // Connect emits association + address events
	autoScan    bool // ScanStart emits EventScanDone
	scanStarts  int
	failScan    bool
	failResults bool
	failConnect bool
}

// NewMock creates a new mock driver with auto-join and auto-scan enabled,
// which is what most tests want: commands complete with plausible events.
func NewMock() *Mock {
	return &Mock{
		events:   make(chan Event, eventBufferSize),
		autoJoin: true,
		autoScan: true,
	}
}

// SetVisibleNetworks scripts the raw scan results returned by ScanResults.
func (m *Mock) SetVisibleNetworks(nets []models.Network) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = make([]models.Network, len(nets))
	copy(m.visible, nets)
}

// SetAutoJoin controls whether Connect emits association and address events.
func (m *Mock) SetAutoJoin(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoJoin = v
}

// SetAutoScan controls whether ScanStart emits EventScanDone.
func (m *Mock) SetAutoScan(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoScan = v
}

// SetFailScan configures ScanStart to fail.
func (m *Mock) SetFailScan(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failScan = fail
}

// SetFailResults configures ScanResults to fail.
func (m *Mock) SetFailResults(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failResults = fail
}

// SetFailConnect configures Connect to fail.
func (m *Mock) SetFailConnect(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConnect = fail
}

// ScanStartCount reports how many scan commands have been issued.
func (m *Mock) ScanStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanStarts
}

// StationConfig returns the last stored station credentials.
func (m *Mock) StationConfig() models.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.station
}

// APConfigured returns the last stored AP configuration.
func (m *Mock) APConfigured() APConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ap
}

// Emit injects an event, as if the radio had reported it.
func (m *Mock) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- ev
}

func (m *Mock) Init(ctx context.Context) error { return nil }

func (m *Mock) SetMode(ctx context.Context, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.mode
	m.mode = mode
	if m.closed {
		return nil
	}
	if mode == ModeAP || mode == ModeAPStation {
		m.events <- Event{Type: EventAPStarted}
	} else if prev == ModeAP || prev == ModeAPStation {
		m.events <- Event{Type: EventAPStopped}
	}
	return nil
}

func (m *Mock) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Mock) SetStationConfig(ctx context.Context, creds models.Credentials) error {
	if len(creds.SSID) == 0 || len(creds.SSID) > models.MaxSSIDLen {
		return fmt.Errorf("mock: invalid ssid length %d", len(creds.SSID))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.station = creds
	return nil
}

func (m *Mock) SetAPConfig(ctx context.Context, cfg APConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ap = cfg
	return nil
}

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConnect {
		return fmt.Errorf("mock: connect failure configured")
	}
	if m.autoJoin && !m.closed {
		m.events <- Event{Type: EventStationConnected}
		m.events <- Event{Type: EventAddressAcquired, Addr: "192.168.1.50"}
	}
	return nil
}

func (m *Mock) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.autoJoin && !m.closed {
		m.events <- Event{Type: EventStationDisconnected, Reason: "requested"}
	}
	return nil
}

func (m *Mock) ScanStart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanStarts++
	if m.failScan {
		return fmt.Errorf("mock: scan failure configured")
	}
	if m.autoScan && !m.closed {
		m.events <- Event{Type: EventScanDone}
	}
	return nil
}

func (m *Mock) ScanResults(ctx context.Context) ([]models.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResults {
		return nil, fmt.Errorf("mock: results failure configured")
	}
	out := make([]models.Network, len(m.visible))
	copy(out, m.visible)
	return out, nil
}

func (m *Mock) Events() <-chan Event { return m.events }

func (m *Mock) IsReal() bool { return false }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// Ensure Mock implements Driver
var _ Driver = (*Mock)(nil)
