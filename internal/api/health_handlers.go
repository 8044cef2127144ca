package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/homelayout/internal/middleware"
)

// HealthChecker is implemented by dependencies that gate readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SubscriberCounter reports open layout event streams.
type SubscriberCounter interface {
	ConnectionCount() int
}

// HealthHandlersConfig configures the health endpoints.
type HealthHandlersConfig struct {
	StoreChecker   HealthChecker
	Subscribers    SubscriberCounter
	MetricsEnabled bool
}

// HealthHandlers serves the liveness and readiness checks.
type HealthHandlers struct {
	cfg HealthHandlersConfig
}

func NewHealthHandlers(cfg HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{cfg: cfg}
}

// HealthResponse is the body of both health endpoints.
type HealthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Subscribers *int              `json:"event_subscribers,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

func healthMethodOK(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	return false
}

// Health handles GET /health. It answers 200 while the process serves requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !healthMethodOK(w, r) {
		return
	}
	writeStatusJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. The layout cannot be served without its row
// store, so an unreachable store answers 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !healthMethodOK(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"store": "ok", "metrics": "disabled"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.cfg.StoreChecker != nil {
		if err := h.cfg.StoreChecker.HealthCheck(ctx); err != nil {
			slog.WarnContext(ctx, "row store health check failed", "error", err)
			resp.Checks["store"] = "error"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	if h.cfg.MetricsEnabled {
		resp.Checks["metrics"] = "ok"
	}
	if h.cfg.Subscribers != nil {
		n := h.cfg.Subscribers.ConnectionCount()
		resp.Subscribers = &n
	}

	writeStatusJSON(w, r, status, resp)
}
