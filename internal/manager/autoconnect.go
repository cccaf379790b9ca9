package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/radio"
)

// AutoConnect attempts to join the stored network and falls back to the
// configuration portal when that fails or no credentials exist. Returns
// true once the device is connected, either directly or via the portal.
func (m *Manager) AutoConnect(ctx context.Context, apSSID, apSecret string) bool {
	m.mu.RLock()
	creds := m.settings.Credentials
	timeout := time.Duration(m.settings.PortalTimeoutSec) * time.Second
	connectWait := m.connectWait
	m.mu.RUnlock()

	if creds.Empty() {
		slog.Info("manager: no stored credentials, starting portal")
		return m.StartPortal(ctx, apSSID, apSecret, timeout)
	}

	if err := m.directConnect(ctx, creds); err != nil {
		slog.Warn("manager: direct connect failed", "err", err)
	} else if m.waitForOutcome(ctx, connectWait) {
		slog.Info("manager: connected to stored network", "ssid", creds.SSID)
		return true
	}

	slog.Info("manager: stored network unreachable, starting portal", "ssid", creds.SSID)
	return m.StartPortal(ctx, apSSID, apSecret, timeout)
}

// directConnect brings the radio into station mode, scans for the saved
// network, and issues the connect command. When the saved SSID is not in
// the scan results we log and connect anyway — the network may be hidden
// or momentarily missed, and a failed join degrades through the normal
// retry path.
func (m *Manager) directConnect(ctx context.Context, creds models.Credentials) error {
	if err := m.drv.SetMode(ctx, radio.ModeStation); err != nil {
		return err
	}

	m.scan.Reset()
	m.scan.RequestScan()
	m.waitForScan(ctx)

	if target, ok := m.strongestMatch(creds.SSID); ok {
		slog.Info("manager: joining saved network", "ssid", target.SSID,
			"rssi", target.RSSI, "quality", target.Quality)
	} else {
		slog.Warn("manager: saved network not in scan results, connecting anyway",
			"ssid", creds.SSID)
	}

	if err := m.drv.SetStationConfig(ctx, creds); err != nil {
		return err
	}
	m.mu.Lock()
	m.retry = 0
	m.mu.Unlock()
	m.setStatus(models.StatusConnecting)
	return m.drv.Connect(ctx)
}

// waitForScan blocks until the scan snapshot is completed or the bound
// elapses. A scan that can never complete is marked completed-empty by the
// coordinator, so this always terminates.
func (m *Manager) waitForScan(ctx context.Context) {
	m.mu.RLock()
	bound := m.scanWait
	m.mu.RUnlock()

	deadline := time.Now().Add(bound)
	for time.Now().Before(deadline) {
		if _, completed := m.scan.Snapshot(); completed {
			return
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
	slog.Warn("manager: scan did not complete in time")
}

// strongestMatch returns the strongest scan entry whose SSID matches.
func (m *Manager) strongestMatch(ssid string) (models.Network, bool) {
	nets, completed := m.scan.Snapshot()
	if !completed {
		return models.Network{}, false
	}
	// Snapshot is sorted strongest-first; the first match wins.
	for _, n := range nets {
		if n.SSID == ssid {
			return n, true
		}
	}
	return models.Network{}, false
}

// waitForOutcome polls until the connect attempt settles: true on
// Connected, false once the retry path gives up (Disconnected) or the
// bound elapses.
func (m *Manager) waitForOutcome(ctx context.Context, bound time.Duration) bool {
	deadline := time.Now().Add(bound)
	for time.Now().Before(deadline) {
		switch m.Status() {
		case models.StatusConnected:
			return true
		case models.StatusDisconnected:
			return false
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// Connect submits operator credentials: they are persisted, pushed to the
// radio, and a connect is issued. Called from the portal web surface and
// from the management API.
func (m *Manager) Connect(ctx context.Context, ssid, passphrase string) *models.AppError {
	if ssid == "" || len(ssid) > models.MaxSSIDLen {
		return models.ErrBadRequest("ssid must be 1-32 chars")
	}
	if len(passphrase) > models.MaxPassphraseLen {
		return models.ErrBadRequest("passphrase too long")
	}
	if passphrase != "" && len(passphrase) < 8 {
		return models.ErrBadRequest("passphrase must be at least 8 chars or empty")
	}

	creds := models.Credentials{SSID: ssid, Passphrase: passphrase}
	if err := m.saveCredentials(creds); err != nil {
		slog.Warn("manager: persisting credentials failed", "err", err)
	}
	if err := m.drv.SetStationConfig(ctx, creds); err != nil {
		return models.ErrBadRequest(err.Error())
	}

	m.mu.Lock()
	m.retry = 0
	m.mu.Unlock()
	m.setStatus(models.StatusConnecting)
	if err := m.drv.Connect(ctx); err != nil {
		slog.Warn("manager: connect command failed", "err", err)
		return models.ErrInternal("connect command failed")
	}
	return nil
}
