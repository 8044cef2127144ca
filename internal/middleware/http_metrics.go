package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// namedSegments maps a path segment to the placeholder used for the segment
// that follows it, for parameters that are not numeric ids.
var namedSegments = map[string]string{
	"synonyms": "{synonym}",
	"function": "{function}",
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. /api/v1/widgets/12/saveSize/ becomes
// /api/v1/widgets/{id}/saveSize/ and /api/v1/locations/3/synonyms/den/ becomes
// /api/v1/locations/{id}/synonyms/{synonym}/.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = part
		if part == "" {
			continue
		}
		if i > 0 {
			if placeholder, ok := namedSegments[parts[i-1]]; ok {
				out[i] = placeholder
				continue
			}
		}
		if _, err := strconv.Atoi(part); err == nil {
			out[i] = "{id}"
		}
	}
	return strings.Join(out, "/")
}

// excludedFromMetrics reports whether a path is a health check or scrape endpoint.
func excludedFromMetrics(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}

func errorCodeFor(rw *responseWriter, r *http.Request) string {
	if rw.statusCode < 400 {
		return ""
	}
	if rw.errorCode != "" {
		return rw.errorCode
	}
	return GetErrorCode(r.Context())
}

// HTTPMetrics records duration, sizes and counts per normalized route, plus
// error codes for failed responses. Health check and scrape endpoints are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedFromMetrics(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.inFlight.Inc()
			defer metrics.inFlight.Dec()

			start := time.Now()
			rw := newResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(rw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.statusCode),
				errorCodeFor(rw, r),
				time.Since(start).Seconds(),
				requestSize,
				int64(rw.size),
			)
		})
	}
}
