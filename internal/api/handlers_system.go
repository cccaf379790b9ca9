package api

import (
	"net/http"
	"time"

	"github.com/netplume/wifimgr-go/internal/maintenance"
	"github.com/netplume/wifimgr-go/internal/models"
)

// scheduleRestart fires the restart hook shortly after the response has
// been written.
func (h *Handlers) scheduleRestart() {
	if h.restart == nil {
		return
	}
	time.AfterFunc(250*time.Millisecond, h.restart)
}

func (h *Handlers) systemRestart(w http.ResponseWriter, r *http.Request) {
	h.scheduleRestart()
	writeJSON(w, http.StatusOK, map[string]interface{}{"restarting": true})
}

// wifiReset clears the stored credentials and restarts, which drops the
// device back into the provisioning flow.
func (h *Handlers) wifiReset(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.EraseConfig(false); err != nil {
		writeError(w, models.ErrInternal("erase failed: "+err.Error()))
		return
	}
	h.scheduleRestart()
	writeJSON(w, http.StatusOK, map[string]interface{}{"erased": true, "restarting": true})
}

// factoryReset additionally clears all parameter values.
func (h *Handlers) factoryReset(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.EraseConfig(true); err != nil {
		writeError(w, models.ErrInternal("erase failed: "+err.Error()))
		return
	}
	h.scheduleRestart()
	writeJSON(w, http.StatusOK, map[string]interface{}{"erased": true, "restarting": true})
}

// createBackup triggers an immediate settings backup and returns the file path.
func (h *Handlers) createBackup(w http.ResponseWriter, r *http.Request) {
	file, err := maintenance.NewBackup(h.configDir).RunNow()
	if err != nil {
		writeError(w, models.ErrInternal(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"file": file})
}
