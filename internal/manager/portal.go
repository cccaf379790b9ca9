package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/radio"
)

// StartPortal raises the access point and blocks until the operator
// successfully connects the device (true) or the portal times out or is
// aborted (false). Re-entrant calls while a portal run is active are
// rejected. A secret shorter than 8 characters falls back to an open AP.
//
// The timeout timer's only side effect is setting the abort flag; the poll
// loop observes it, so no radio state is ever touched from the timer
// goroutine.
func (m *Manager) StartPortal(ctx context.Context, apSSID, apSecret string, timeout time.Duration) bool {
	if !m.portalActive.CompareAndSwap(false, true) {
		slog.Warn("portal: already running, rejecting start")
		return false
	}
	defer m.portalActive.Store(false)

	// Phase 1: reset flags, enter portal status, notify.
	m.portalAbort.Store(false)
	m.portalSaved.Store(false)

	if apSecret != "" && len(apSecret) < models.MinAPSecretLen {
		slog.Warn("portal: AP secret shorter than 8 chars, falling back to open AP")
		apSecret = ""
	}
	m.mu.Lock()
	m.apSSID = apSSID
	m.apSecret = apSecret
	cb := m.cb
	m.mu.Unlock()

	slog.Info("portal: starting", "ap_ssid", apSSID, "secured", apSecret != "", "timeout", timeout)
	m.setStatus(models.StatusConfigPortal)
	if cb.OnAPMode != nil {
		cb.OnAPMode(apSSID)
	}
	m.bus.Publish(models.Event{Type: "portal", Status: models.StatusConfigPortal, Detail: "started"})

	// Phase 2: simultaneous AP+station mode with the portal identity.
	if err := m.drv.SetAPConfig(ctx, radio.APConfig{SSID: apSSID, Secret: apSecret, Chan: 1}); err != nil {
		slog.Warn("portal: AP config failed", "err", err)
	}
	if err := m.drv.SetMode(ctx, radio.ModeAPStation); err != nil {
		slog.Warn("portal: mode switch failed", "err", err)
	}
	if err := m.drv.Disconnect(ctx); err != nil {
		slog.Debug("portal: disconnect on entry", "err", err)
	}

	// Phase 3: the portal web surface is the always-on HTTP API; auth is
	// opened for captive clients through PortalActive.

	// Phase 4: let the AP settle, then take the initial scan.
	m.mu.RLock()
	settle, poll := m.settleDelay, m.pollStep
	m.mu.RUnlock()
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		m.portalAbort.Store(true)
	}
	m.scan.Reset()
	m.scan.RequestScan()

	// Phase 5: one-shot timeout timer; its sole side effect is the flag.
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			slog.Info("portal: timed out")
			m.portalAbort.Store(true)
		})
	}

	// Phase 6: coarse poll until abort, save, or operator-driven connect.
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for !m.portalAbort.Load() && !m.portalSaved.Load() {
		if m.Status() == models.StatusConnected {
			m.portalSaved.Store(true)
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			m.portalAbort.Store(true)
		}
	}

	// Phase 7: disarm the timer before reading the outcome.
	if timer != nil {
		timer.Stop()
	}

	// Phase 8: report.
	saved := m.portalSaved.Load()
	slog.Info("portal: finished", "saved", saved)
	m.bus.Publish(models.Event{Type: "portal", Status: m.Status(), Detail: "stopped"})
	if saved {
		if cb.OnSave != nil {
			cb.OnSave()
		}
		return true
	}
	return false
}

// PortalActive reports whether a portal run is in progress. The HTTP auth
// middleware opens up while this is true: captive clients own the device.
func (m *Manager) PortalActive() bool {
	return m.portalActive.Load()
}

// AbortPortal asks a running portal to stop. Cooperative: the poll loop
// observes the flag within one poll interval.
func (m *Manager) AbortPortal() {
	if m.portalActive.Load() {
		slog.Info("portal: abort requested")
		m.portalAbort.Store(true)
	}
}

// ConfigSaved marks the portal run as saved after the operator submitted
// configuration, and persists the parameter blob.
func (m *Manager) ConfigSaved() error {
	err := m.SaveParams()
	if m.portalActive.Load() {
		m.portalSaved.Store(true)
	}
	return err
}
