package zeroconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/zeroconf"
)

// TestNew verifies that New returns a non-nil service without panicking.
func TestNew(t *testing.T) {
	svc := zeroconf.New("wifimgr-test", 8080)
	if svc == nil {
		t.Fatal("New() returned nil")
	}
}

// TestSetStatusBeforeStart verifies SetStatus is a no-op before Start.
func TestSetStatusBeforeStart(t *testing.T) {
	svc := zeroconf.New("wifimgr-test", 18080)
	svc.SetStatus(models.StatusConnected) // must not panic or register
}

// TestStart_Cancel starts the service and cancels the context within 1 second.
// It verifies that Start returns without blocking.
func TestStart_Cancel(t *testing.T) {
	svc := zeroconf.New("wifimgr-test", 18080)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		// Start may return an error if mDNS is unavailable in the test
		// environment; what matters is that it returned.
		if err != nil {
			t.Logf("Start returned error (may be expected in CI): %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return within 3 seconds after context cancellation")
	}
}
