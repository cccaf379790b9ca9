package maintenance

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// makePipe returns a connected in-memory net.Conn pair.
func makePipe() (net.Conn, net.Conn) {
	return net.Pipe()
}

func TestWatchdogCheck(t *testing.T) {
	tests := []struct {
		name       string
		dialErr    error
		wantStatus string
		wantOnline bool
	}{
		{
			name:       "online",
			dialErr:    nil,
			wantStatus: "online",
			wantOnline: true,
		},
		{
			name:       "offline",
			dialErr:    &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded},
			wantStatus: "offline",
			wantOnline: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusPath := filepath.Join(t.TempDir(), "wifimgr-online")

			orig := dialFunc
			t.Cleanup(func() { dialFunc = orig })

			var mockConn net.Conn
			if tt.dialErr == nil {
				client, server := makePipe()
				server.Close()
				mockConn = client
			}
			dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
				return mockConn, tt.dialErr
			}

			var gotOnline *bool
			w := NewWatchdog(func() bool { return true }, func(online bool) {
				gotOnline = &online
			})
			w.SetStatusPath(statusPath)

			lastOnline, first := false, true
			w.check(&lastOnline, &first)

			data, err := os.ReadFile(statusPath)
			if err != nil {
				t.Fatalf("status file not written: %v", err)
			}
			if string(data) != tt.wantStatus {
				t.Errorf("status file = %q, want %q", data, tt.wantStatus)
			}
			if gotOnline == nil {
				t.Fatal("onOnline callback not invoked on first check")
			}
			if *gotOnline != tt.wantOnline {
				t.Errorf("callback online = %v, want %v", *gotOnline, tt.wantOnline)
			}
		})
	}
}

func TestWatchdogSkipsWhenNotConnected(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "wifimgr-online")

	orig := dialFunc
	t.Cleanup(func() { dialFunc = orig })
	dialed := false
	dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
		dialed = true
		return nil, os.ErrDeadlineExceeded
	}

	w := NewWatchdog(func() bool { return false }, nil)
	w.SetStatusPath(statusPath)

	lastOnline, first := false, true
	w.check(&lastOnline, &first)

	if dialed {
		t.Error("watchdog probed while disconnected")
	}
	if _, err := os.Stat(statusPath); err == nil {
		t.Error("status file written while disconnected")
	}
}

func TestWatchdogEdgeReporting(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "wifimgr-online")

	orig := dialFunc
	t.Cleanup(func() { dialFunc = orig })

	var dialErr error
	dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, dialErr
	}

	calls := 0
	w := NewWatchdog(func() bool { return true }, func(bool) { calls++ })
	w.SetStatusPath(statusPath)

	lastOnline, first := false, true
	w.check(&lastOnline, &first) // initial: fires
	w.check(&lastOnline, &first) // unchanged: silent
	dialErr = os.ErrDeadlineExceeded
	w.check(&lastOnline, &first) // edge: fires

	if calls != 2 {
		t.Errorf("callback fired %d times, want 2 (initial + edge)", calls)
	}
}

func TestPruneOldBackups(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, backupPrefix+"2020-01-01.tar.gz")
	newFile := filepath.Join(dir, backupPrefix+"2026-08-30.tar.gz")
	otherFile := filepath.Join(dir, "unrelated.tar.gz")
	for _, f := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-100 * 24 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	pruneOldBackups(dir, 90*24*time.Hour)

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old backup not pruned")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("recent backup pruned")
	}
	if _, err := os.Stat(otherFile); err != nil {
		t.Error("unrelated file pruned")
	}
}
