package api

import (
	"net/http"

	"github.com/netplume/wifimgr-go/internal/models"
)

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	apSSID, _ := h.mgr.APIdentity()
	resp := models.StatusResponse{
		Status:       h.mgr.Status(),
		IP:           h.mgr.IP(),
		SSID:         h.mgr.Settings().Credentials.SSID,
		RetryCount:   h.mgr.RetryCount(),
		PortalActive: h.mgr.PortalActive(),
		Version:      models.AppVersion,
	}
	if resp.PortalActive {
		resp.APSSID = apSSID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) abortPortal(w http.ResponseWriter, r *http.Request) {
	if !h.mgr.PortalActive() {
		writeError(w, models.ErrConflict("no portal run is active"))
		return
	}
	h.mgr.AbortPortal()
	writeJSON(w, http.StatusOK, map[string]interface{}{"aborted": true})
}
