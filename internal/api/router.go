package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/netplume/wifimgr-go/internal/auth"
)

// NewRouter creates the main HTTP router. The auth middleware opens up while
// a portal run is active; restart is invoked by the system routes and may be
// nil. configDir is where on-demand backups read the settings from.
func NewRouter(mgr Manager, authSvc *auth.Service, bus EventBus, restart func(), configDir string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{mgr: mgr, events: bus, restart: restart, configDir: configDir}

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware(mgr.PortalActive))

		// Status and events
		r.Get("/api/status", h.getStatus)
		r.Get("/api/events", h.sseEvents)

		// Networks
		r.Get("/api/networks", h.getNetworks)
		r.Post("/api/networks/scan", h.requestScan)
		r.Post("/api/connect", h.connect)

		// Parameters
		r.Get("/api/params", h.getParams)
		r.Patch("/api/params", h.setParams)
		r.Post("/api/params/reset", h.resetParams)

		// Portal
		r.Post("/api/portal/abort", h.abortPortal)

		// System
		r.Post("/api/system/restart", h.systemRestart)
		r.Post("/api/system/factory-reset", h.factoryReset)
		r.Post("/api/system/backup", h.createBackup)
		r.Post("/api/wifi/reset", h.wifiReset)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for captive portal clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
