package identity_test

import (
	"strings"
	"testing"

	"github.com/netplume/wifimgr-go/internal/identity"
)

func TestHostnameNonEmpty(t *testing.T) {
	if identity.Hostname() == "" {
		t.Error("Hostname() returned empty string")
	}
}

func TestShortIDLength(t *testing.T) {
	id := identity.ShortID()
	if id == "" {
		t.Fatal("ShortID() returned empty string")
	}
	if len(id) > 4 {
		t.Errorf("ShortID() = %q, want at most 4 chars", id)
	}
}

func TestDefaultAPSSID(t *testing.T) {
	ssid := identity.DefaultAPSSID("Netplume")
	if !strings.HasPrefix(ssid, "Netplume-Setup-") {
		t.Errorf("DefaultAPSSID = %q, want Netplume-Setup-<id> form", ssid)
	}

	ssid = identity.DefaultAPSSID("")
	if !strings.HasPrefix(ssid, "Wifimgr-Setup-") {
		t.Errorf("DefaultAPSSID(\"\") = %q, want Wifimgr-Setup-<id> form", ssid)
	}
}
