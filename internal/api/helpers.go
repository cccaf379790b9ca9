// Package api implements the HTTP management surface shared by the
// provisioning portal and day-two administration.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/params"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	mgr    Manager
	events EventBus

	// restart is invoked by the system routes after the response is
	// written; main wires it to a graceful shutdown-and-exec.
	restart func()

	// configDir is the settings directory handed to on-demand backups.
	configDir string
}

// Manager is the interface the handlers use to drive the connection manager.
type Manager interface {
	Status() models.Status
	IP() string
	RetryCount() int
	APIdentity() (ssid, secret string)
	Settings() models.Settings
	Networks() ([]models.Network, bool)
	RequestScan()
	ScanInFlight() bool
	Connect(ctx context.Context, ssid, passphrase string) *models.AppError
	Params() *params.Store
	ConfigSaved() error
	SaveParams() error
	PortalActive() bool
	AbortPortal()
	EraseConfig(clearParams bool) error
}

// EventBus is the interface for subscribing to bus events.
type EventBus interface {
	Subscribe(id string) <-chan models.Event
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}
