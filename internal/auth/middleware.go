package auth

import "net/http"

const (
	apiKeyHeader     = "X-Api-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware enforces API-key authentication. In open mode (no keys
// configured) all requests pass through. While the gate reports true the
// API is also left open: during a portal run the captive client owns the
// device and cannot be expected to carry a key.
func (s *Service) Middleware(gate func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.IsOpenMode() || (gate != nil && gate()) {
				next.ServeHTTP(w, r)
				return
			}

			if s.VerifyKey(r.Header.Get(apiKeyHeader)) {
				next.ServeHTTP(w, r)
				return
			}
			if key := r.URL.Query().Get(apiKeyQueryParam); key != "" && s.VerifyKey(key) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"missing or invalid API key"}`))
		})
	}
}
