// Package maintenance provides background goroutines for the daemon: a
// connectivity watchdog and periodic settings backups.
package maintenance

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"
)

// statusFile is where the watchdog mirrors the last probe result for
// shell scripts and the display binary.
const statusFile = "/tmp/wifimgr-online"

// dialFunc is a variable so tests can inject a mock dialer.
var dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Watchdog probes internet reachability while the device is connected.
// Edges are reported through the callback and mirrored to the status file.
type Watchdog struct {
	interval   time.Duration
	probeAddr  string
	statusPath string
	connected  func() bool // probe only while the station is up
	onOnline   func(bool)
}

// NewWatchdog creates a watchdog with the default 5-minute probe interval.
// connected gates the probe; onOnline fires on every reachability edge and
// once for the initial result.
func NewWatchdog(connected func() bool, onOnline func(bool)) *Watchdog {
	return &Watchdog{
		interval:   5 * time.Minute,
		probeAddr:  "1.1.1.1:53",
		statusPath: statusFile,
		connected:  connected,
		onOnline:   onOnline,
	}
}

// SetInterval overrides the probe interval.
func (w *Watchdog) SetInterval(d time.Duration) { w.interval = d }

// SetStatusPath overrides the status file location.
func (w *Watchdog) SetStatusPath(path string) { w.statusPath = path }

// Run blocks until ctx is cancelled, probing on the configured interval.
func (w *Watchdog) Run(ctx context.Context) {
	lastOnline := false
	first := true

	w.check(&lastOnline, &first)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(&lastOnline, &first)
		}
	}
}

func (w *Watchdog) check(lastOnline *bool, first *bool) {
	if w.connected != nil && !w.connected() {
		// Not associated: an offline probe would only state the obvious.
		return
	}

	conn, err := dialFunc("tcp", w.probeAddr, 3*time.Second)
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	status := "offline"
	if online {
		status = "online"
	}
	if err := os.WriteFile(w.statusPath, []byte(status), 0644); err != nil {
		slog.Warn("maintenance: failed to write online status", "err", err)
	}

	if *first || online != *lastOnline {
		*first = false
		*lastOnline = online
		slog.Info("maintenance: online status", "online", online)
		if w.onOnline != nil {
			w.onOnline(online)
		}
	}
}
