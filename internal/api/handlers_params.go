package api

import (
	"encoding/json"
	"net/http"

	"github.com/netplume/wifimgr-go/internal/models"
	"github.com/netplume/wifimgr-go/internal/params"
)

func paramViews(list []params.Parameter) []models.ParamView {
	out := make([]models.ParamView, 0, len(list))
	for _, p := range list {
		out = append(out, models.ParamView{
			Key:         p.Key,
			Label:       p.Label,
			Type:        p.Type.String(),
			Value:       p.Value,
			Default:     p.Default,
			Required:    p.Required,
			Placeholder: p.Placeholder,
		})
	}
	return out
}

func (h *Handlers) getParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": paramViews(h.mgr.Params().List()),
	})
}

// setParams applies a partial update of parameter values. Each value is
// validated as it is applied; the first failure stops the update and skips
// the persist, so a bad batch never reaches disk.
func (h *Handlers) setParams(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}

	store := h.mgr.Params()
	for key, value := range updates {
		if appErr := store.Set(key, value); appErr != nil {
			writeError(w, appErr)
			return
		}
	}

	// Persist and, during a portal run, mark the configuration as saved.
	if err := h.mgr.ConfigSaved(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": paramViews(store.List()),
	})
}

func (h *Handlers) resetParams(w http.ResponseWriter, r *http.Request) {
	store := h.mgr.Params()
	store.ResetAll()
	if err := h.mgr.SaveParams(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": paramViews(store.List()),
	})
}
