package api

import (
	"encoding/json"
	"net/http"

	"github.com/netplume/wifimgr-go/internal/models"
)

func (h *Handlers) getNetworks(w http.ResponseWriter, r *http.Request) {
	nets, completed := h.mgr.Networks()
	if nets == nil {
		nets = []models.Network{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"networks":  nets,
		"completed": completed,
		"scanning":  h.mgr.ScanInFlight(),
	})
}

func (h *Handlers) requestScan(w http.ResponseWriter, r *http.Request) {
	h.mgr.RequestScan()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"scanning": true})
}

func (h *Handlers) connect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if appErr := h.mgr.Connect(r.Context(), req.SSID, req.Passphrase); appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": models.StatusConnecting,
		"ssid":   req.SSID,
	})
}
