// Package manager implements the connection state machine and provisioning
// orchestration for wifimgr: it consumes radio events to maintain the
// station link, falls back to a captive configuration portal, and owns the
// persisted credentials and application parameters.
package manager

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netplume/wifimgr-go/internal/events"
	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/params"
	"github.com/netplume/wifimgr-go/internal/radio"
	"github.com/netplume/wifimgr-go/internal/scan"
	"github.com/netplume/wifimgr-go/internal/store"
)

// Callbacks are invoked synchronously at well-defined lifecycle points.
// All fields are optional.
type Callbacks struct {
	OnAPMode  func(apSSID string) // portal entered AP mode
	OnSave    func()              // operator saved configuration
	OnConnect func(ip string)     // station acquired an address
}

// Manager is the long-lived aggregate owning connection status, the retry
// counter, the scan coordinator, and the parameter store.
//
// Concurrency: status, ip, and retry have a single writer — the event loop
// goroutine plus the portal lifecycle calls, which serialize through mu.
// The portal flags are atomics because the timeout timer sets abort from
// its own goroutine.
type Manager struct {
	drv    radio.Driver
	st     store.Store
	bus    *events.Bus
	scan   *scan.Coordinator
	params *params.Store

	mu       sync.RWMutex
	status   models.Status
	ip       string
	retry    int
	settings models.Settings
	apSSID   string
	apSecret string
	cb       Callbacks

	maxRetries int

	portalActive atomic.Bool
	portalAbort  atomic.Bool
	portalSaved  atomic.Bool

	// Timing knobs, overridable for tests.
	settleDelay time.Duration // AP bring-up settle before the first scan
	pollStep    time.Duration // portal poll interval
	scanWait    time.Duration // direct-connect scan completion bound
	connectWait time.Duration // auto-connect association bound

	loopDone chan struct{}
}

// New creates a Manager, loads persisted settings, and starts the event
// loop consuming driver events. The caller owns the driver's lifetime;
// closing the driver stops the event loop.
func New(drv radio.Driver, st store.Store, bus *events.Bus) (*Manager, error) {
	settings, err := st.Load()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		drv:         drv,
		st:          st,
		bus:         bus,
		params:      params.NewStore(),
		status:      models.StatusDisconnected,
		settings:    *settings,
		maxRetries:  models.MaxRetries,
		settleDelay: 2 * time.Second,
		pollStep:    time.Second,
		scanWait:    15 * time.Second,
		connectWait: 20 * time.Second,
		loopDone:    make(chan struct{}),
	}
	m.scan = scan.New(drv, m.Status, func(count int) {
		bus.Publish(models.Event{Type: "scan", Status: m.Status(), Networks: count})
	})

	go m.eventLoop()
	return m, nil
}

// Close stops the scan worker and waits for the event loop to drain.
// The radio driver must be closed first so the event channel terminates.
func (m *Manager) Close() {
	<-m.loopDone
	m.scan.Stop()
}

// eventLoop consumes driver events strictly in emission order. It is the
// sole writer of status, ip, and retry outside the portal lifecycle calls.
func (m *Manager) eventLoop() {
	defer close(m.loopDone)
	for ev := range m.drv.Events() {
		m.handleEvent(ev)
	}
}

func (m *Manager) handleEvent(ev radio.Event) {
	switch ev.Type {
	case radio.EventStationStarted:
		slog.Debug("radio: station interface started")

	case radio.EventStationConnected:
		if m.Status() == models.StatusConnecting {
			slog.Debug("radio: associated")
			return
		}
		m.setStatus(models.StatusConnecting)

	case radio.EventStationDisconnected:
		m.handleDisconnect(ev.Reason)

	case radio.EventAddressAcquired:
		m.mu.Lock()
		m.ip = ev.Addr
		m.retry = 0
		cb := m.cb.OnConnect
		m.mu.Unlock()
		slog.Info("radio: address acquired", "ip", ev.Addr)
		m.setStatus(models.StatusConnected)
		if cb != nil {
			cb(ev.Addr)
		}

	case radio.EventAddressLost:
		m.mu.Lock()
		m.ip = ""
		m.mu.Unlock()
		slog.Info("radio: address lost")
		m.setStatus(models.StatusDisconnected)

	case radio.EventScanDone:
		// Hand off to the scan worker; retrieval must not run here.
		m.scan.OnScanDone()

	case radio.EventAPStarted:
		slog.Info("radio: access point up")
	case radio.EventAPStopped:
		slog.Info("radio: access point down")
	case radio.EventStaJoinedAP:
		slog.Info("radio: client joined AP", "mac", ev.MAC)
	case radio.EventStaLeftAP:
		slog.Debug("radio: client left AP", "mac", ev.MAC)
	}
}

// handleDisconnect runs the retry policy: reconnect while the counter is
// below the limit, otherwise degrade to disconnected and reset the counter.
// Radio command errors are folded back into this same path.
func (m *Manager) handleDisconnect(reason string) {
	m.mu.Lock()
	if m.retry >= m.maxRetries {
		m.retry = 0
		m.mu.Unlock()
		slog.Warn("radio: retries exhausted", "reason", reason)
		m.setStatus(models.StatusDisconnected)
		return
	}
	m.retry++
	attempt := m.retry
	m.mu.Unlock()

	slog.Info("radio: disconnected, reconnecting", "attempt", attempt, "reason", reason)
	m.setStatus(models.StatusConnecting)
	if err := m.drv.Connect(context.Background()); err != nil {
		slog.Warn("radio: reconnect command failed", "err", err)
		m.handleDisconnect("connect error")
	}
}

// setStatus records a new status and publishes it on the bus.
func (m *Manager) setStatus(s models.Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	ip := m.ip
	ssid := m.settings.Credentials.SSID
	m.mu.Unlock()

	slog.Debug("manager: status", "status", s.String())
	m.bus.Publish(models.Event{Type: "status", Status: s, IP: ip, SSID: ssid})
}

// Status returns the current connection status.
func (m *Manager) Status() models.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IP returns the last acquired address, or "" when disconnected.
func (m *Manager) IP() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ip
}

// RetryCount returns the current reconnect attempt counter.
func (m *Manager) RetryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retry
}

// APIdentity returns the AP SSID and secret of the running or most recent
// portal session.
func (m *Manager) APIdentity() (ssid, secret string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apSSID, m.apSecret
}

// Params returns the application parameter store.
func (m *Manager) Params() *params.Store { return m.params }

// SetCallbacks registers lifecycle callbacks. Call before AutoConnect.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
}

// SetMaxRetries overrides the reconnect attempt limit.
func (m *Manager) SetMaxRetries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n >= 0 {
		m.maxRetries = n
	}
}

// SetPortalTimeout overrides the persisted portal timeout. Zero disables it.
func (m *Manager) SetPortalTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.PortalTimeoutSec = int(d / time.Second)
}

// SetMinQuality overrides the minimum signal quality for listed networks.
func (m *Manager) SetMinQuality(q int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q >= 0 && q <= 100 {
		m.settings.MinQuality = q
	}
}

// SetTiming overrides the orchestration delays; primarily for tests.
// Zero values leave the corresponding delay unchanged.
func (m *Manager) SetTiming(settle, poll, scanWait, connectWait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settle > 0 {
		m.settleDelay = settle
	}
	if poll > 0 {
		m.pollStep = poll
	}
	if scanWait > 0 {
		m.scanWait = scanWait
	}
	if connectWait > 0 {
		m.connectWait = connectWait
	}
}

// Settings returns a copy of the current persisted settings.
func (m *Manager) Settings() models.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.DeepCopy()
}

// Networks returns the latest completed scan snapshot filtered by the
// minimum signal quality, plus whether the snapshot is valid yet.
func (m *Manager) Networks() ([]models.Network, bool) {
	nets, completed := m.scan.Snapshot()
	if !completed {
		return nil, false
	}
	m.mu.RLock()
	minQ := m.settings.MinQuality
	m.mu.RUnlock()

	out := nets[:0]
	for _, n := range nets {
		if n.Quality >= minQ {
			out = append(out, n)
		}
	}
	return out, true
}

// RequestScan asks the scan coordinator for a fresh scan cycle.
func (m *Manager) RequestScan() {
	m.scan.RequestScan()
}

// ScanInFlight reports whether a scan cycle is currently running.
func (m *Manager) ScanInFlight() bool {
	return m.scan.InFlight()
}

// LoadParams applies the persisted parameter blob to the parameter store.
// Call after all parameters are registered.
func (m *Manager) LoadParams() error {
	m.mu.RLock()
	blob := m.settings.Params
	m.mu.RUnlock()
	return m.params.Deserialize(blob)
}

// SaveParams serializes the parameter store into the settings document and
// schedules a persist.
func (m *Manager) SaveParams() error {
	blob, err := m.params.Serialize()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.settings.Params = blob
	cp := m.settings.DeepCopy()
	m.mu.Unlock()

	m.bus.Publish(models.Event{Type: "params", Status: m.Status()})
	return m.st.Save(&cp)
}

// saveCredentials persists new station credentials.
func (m *Manager) saveCredentials(creds models.Credentials) error {
	m.mu.Lock()
	m.settings.Credentials = creds
	cp := m.settings.DeepCopy()
	m.mu.Unlock()
	return m.st.Save(&cp)
}

// EraseConfig clears the stored credentials (and optionally the parameter
// values) and flushes the settings file immediately.
func (m *Manager) EraseConfig(clearParams bool) error {
	m.mu.Lock()
	m.settings.Credentials = models.Credentials{}
	if clearParams {
		m.settings.Params = nil
	}
	cp := m.settings.DeepCopy()
	m.mu.Unlock()

	if clearParams {
		m.params.ResetAll()
	}
	slog.Info("manager: configuration erased", "params_cleared", clearParams)
	if err := m.st.Save(&cp); err != nil {
		return err
	}
	return m.st.Flush()
}
