package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/store"
)

func TestJSONStoreLoadMissingFile(t *testing.T) {
	s := store.NewJSONStore(t.TempDir())

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.PortalTimeoutSec != models.DefaultPortalTimeoutSec {
		t.Errorf("portal timeout = %d, want default %d",
			settings.PortalTimeoutSec, models.DefaultPortalTimeoutSec)
	}
	if !settings.Credentials.Empty() {
		t.Error("expected empty credentials on fresh load")
	}
}

func TestJSONStoreSaveFlushLoad(t *testing.T) {
	dir := t.TempDir()
	s := store.NewJSONStore(dir)

	settings := models.DefaultSettings()
	settings.Credentials = models.Credentials{SSID: "HomeNet", Passphrase: "hunter22"}
	settings.MinQuality = 30

	if err := s.Save(&settings); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Save is debounced; Flush forces the write.
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Credentials.SSID != "HomeNet" || got.Credentials.Passphrase != "hunter22" {
		t.Errorf("credentials = %+v, want HomeNet/hunter22", got.Credentials)
	}
	if got.MinQuality != 30 {
		t.Errorf("min quality = %d, want 30", got.MinQuality)
	}
}

func TestJSONStoreCorruptFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	s := store.NewJSONStore(dir)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.PortalTimeoutSec != models.DefaultPortalTimeoutSec {
		t.Errorf("expected default settings on corrupt file, got %+v", settings)
	}
}

func TestJSONStoreFlushWithoutSave(t *testing.T) {
	s := store.NewJSONStore(t.TempDir())
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush with nothing pending should be a no-op, got %v", err)
	}
}

func TestMigrationClampsInvalidFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	raw := map[string]interface{}{
		"version":            1,
		"portal_timeout_sec": -5,
		"min_quality":        250,
		"credentials": map[string]string{
			"ssid":       "ok",
			"passphrase": "secret",
		},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s := store.NewJSONStore(dir)
	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.PortalTimeoutSec != models.DefaultPortalTimeoutSec {
		t.Errorf("portal timeout = %d, want default", settings.PortalTimeoutSec)
	}
	if settings.MinQuality != models.DefaultMinQuality {
		t.Errorf("min quality = %d, want default", settings.MinQuality)
	}
	if settings.Credentials.SSID != "ok" {
		t.Errorf("valid credentials should survive migration, got %+v", settings.Credentials)
	}
}

func TestMigrationClearsOversizedCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	long := make([]byte, 40)
	for i := range long {
		long[i] = 'a'
	}
	raw := map[string]interface{}{
		"version": 1,
		"credentials": map[string]string{
			"ssid":       string(long),
			"passphrase": "secret",
		},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s := store.NewJSONStore(dir)
	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !settings.Credentials.Empty() {
		t.Errorf("oversized credentials should be cleared, got %+v", settings.Credentials)
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	m := store.NewMemStore()

	settings, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	settings.Credentials.SSID = "Lab"
	if err := m.Save(settings); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the saved pointer must not leak into the store.
	settings.Credentials.SSID = "changed"

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Credentials.SSID != "Lab" {
		t.Errorf("ssid = %q, want Lab", got.Credentials.SSID)
	}
}
