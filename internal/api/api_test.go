package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netplume/wifimgr-go/internal/api"
	"github.com/netplume/wifimgr-go/internal/auth"
	"github.com/netplume/wifimgr-go/internal/events"
	"github.com/netplume/wifimgr-go/internal/manager"
	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/params"
	"github.com/netplume/wifimgr-go/internal/radio"
	"github.com/netplume/wifimgr-go/internal/store"
)

// newTestServer spins up a full router over a mock radio.
func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager, *radio.Mock, *events.Bus) {
	t.Helper()

	drv := radio.NewMock()
	bus := events.NewBus()
	mgr, err := manager.New(drv, store.NewMemStore(), bus)
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	mgr.SetTiming(10*time.Millisecond, 20*time.Millisecond, 500*time.Millisecond, 2*time.Second)

	authSvc, err := auth.NewService(t.TempDir()) // open mode
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	router := api.NewRouter(mgr, authSvc, bus, nil, t.TempDir())
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		authSvc.Close()
		drv.Close()
		mgr.Close()
	})
	return srv, mgr, drv, bus
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// --- Tests ---

func TestGetStatus(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp := do(t, srv, "GET", "/api/status", "")
	requireStatus(t, resp, http.StatusOK)

	var status models.StatusResponse
	decodeJSON(t, resp, &status)

	if status.Status != models.StatusDisconnected {
		t.Errorf("status = %v, want disconnected at boot", status.Status)
	}
	if status.Version == "" {
		t.Error("version missing from status response")
	}
	if status.PortalActive {
		t.Error("portal_active = true at boot")
	}
}

func TestScanAndListNetworks(t *testing.T) {
	srv, _, drv, _ := newTestServer(t)
	drv.SetVisibleNetworks([]models.Network{
		{SSID: "HomeNet", RSSI: -55, Quality: 90, Security: models.SecurityWPA2},
	})

	resp := do(t, srv, "POST", "/api/networks/scan", "")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	var body struct {
		Networks  []models.Network `json:"networks"`
		Completed bool             `json:"completed"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp = do(t, srv, "GET", "/api/networks", "")
		requireStatus(t, resp, http.StatusOK)
		decodeJSON(t, resp, &body)
		if body.Completed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !body.Completed {
		t.Fatal("scan never completed")
	}
	if len(body.Networks) != 1 || body.Networks[0].SSID != "HomeNet" {
		t.Errorf("networks = %+v, want [HomeNet]", body.Networks)
	}
}

func TestConnectValid(t *testing.T) {
	srv, _, drv, _ := newTestServer(t)

	resp := do(t, srv, "POST", "/api/connect", `{"ssid":"HomeNet","passphrase":"supersecret"}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if drv.StationConfig().SSID == "HomeNet" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("driver station config = %+v, want HomeNet", drv.StationConfig())
}

func TestConnectRejectsBadInput(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp := do(t, srv, "POST", "/api/connect", `{"ssid":""}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = do(t, srv, "POST", "/api/connect", `{"ssid":"Net","passphrase":"short"}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = do(t, srv, "POST", "/api/connect", `not json`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestParamsLifecycle(t *testing.T) {
	srv, mgr, _, _ := newTestServer(t)

	if err := mgr.Params().Add(params.Parameter{
		Key: "mqtt_host", Label: "MQTT Host", Type: params.TypeString, Default: "localhost",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mgr.Params().Add(params.Parameter{
		Key: "mqtt_port", Label: "MQTT Port", Type: params.TypeInt, Default: "1883",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var body struct {
		Params []models.ParamView `json:"params"`
	}

	resp := do(t, srv, "GET", "/api/params", "")
	requireStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &body)
	if len(body.Params) != 2 {
		t.Fatalf("got %d params, want 2", len(body.Params))
	}

	resp = do(t, srv, "PATCH", "/api/params", `{"mqtt_port":"8883"}`)
	requireStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &body)
	for _, p := range body.Params {
		if p.Key == "mqtt_port" && p.Value != "8883" {
			t.Errorf("mqtt_port = %q after patch, want 8883", p.Value)
		}
	}

	// Invalid value: 400, value untouched.
	resp = do(t, srv, "PATCH", "/api/params", `{"mqtt_port":"not-a-number"}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
	if v, _ := mgr.Params().Get("mqtt_port"); v != "8883" {
		t.Errorf("mqtt_port = %q after failed patch, want 8883", v)
	}

	// Unknown key: 404.
	resp = do(t, srv, "PATCH", "/api/params", `{"nope":"x"}`)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = do(t, srv, "POST", "/api/params/reset", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if v, _ := mgr.Params().Get("mqtt_port"); v != "1883" {
		t.Errorf("mqtt_port = %q after reset, want default 1883", v)
	}
}

func TestAbortPortalWithoutRun(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp := do(t, srv, "POST", "/api/portal/abort", "")
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestWifiResetErasesCredentials(t *testing.T) {
	srv, mgr, _, _ := newTestServer(t)

	if err := mgr.Connect(context.Background(), "HomeNet", "supersecret"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	resp := do(t, srv, "POST", "/api/wifi/reset", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if ssid := mgr.Settings().Credentials.SSID; ssid != "" {
		t.Errorf("credentials SSID = %q after wifi reset, want empty", ssid)
	}
}

func TestSSESendsInitialStatus(t *testing.T) {
	srv, _, _, bus := newTestServer(t)

	req, err := http.NewRequest("GET", srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("SSE request: %v", err)
	}
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() models.Event {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read SSE stream: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				var ev models.Event
				if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev); err != nil {
					t.Fatalf("decode SSE event: %v", err)
				}
				return ev
			}
		}
	}

	// Synthetic initial status event.
	ev := readEvent()
	if ev.Type != "status" {
		t.Errorf("first event type = %q, want status", ev.Type)
	}

	// A published bus event is mirrored to the stream.
	bus.Publish(models.Event{Type: "portal", Status: models.StatusConfigPortal, Detail: "started"})
	ev = readEvent()
	if ev.Type != "portal" || ev.Detail != "started" {
		t.Errorf("event = %+v, want portal/started", ev)
	}
}
