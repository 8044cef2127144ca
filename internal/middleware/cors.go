package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Error codes written by middleware that rejects a request before routing.
const (
	ErrCodeOriginNotAllowed = "origin_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
)

// CORSConfig holds the cross-origin policy for dashboards served from
// another host. An origin of "*" admits every origin.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int // preflight cache, seconds
}

// DefaultCORSConfig returns the policy used by the API server for the given
// origin allowlist.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		MaxAge:         3600,
	}
}

// OriginChecker reports whether a request's Origin may talk to the API.
// Requests without an Origin header (curl, server-side callers) and
// same-host requests always pass; anything else must be on the allowlist.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[strings.ToLower(origin)] {
			return true
		}
		return sameHost(origin, r.Host)
	}
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// CORS enforces cfg on every request carrying an Origin header. Cross-origin
// requests from unlisted origins are refused with 403 before they reach a
// handler, so a foreign page cannot edit the layout through a visitor's
// browser. Preflight requests are answered directly with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := OriginChecker(cfg.AllowedOrigins)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed(r) {
				writeError(w, r, http.StatusForbidden, ErrCodeOriginNotAllowed, "Origin not allowed")
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Retry-After")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes the API error envelope and reports code to the logging
// and metrics writers further out in the chain.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
