package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimitRequests = errors.New("rate limit must allow at least one request per window")
	ErrRateLimitWindow   = errors.New("rate limit window must be positive")
)

// RateLimitConfig is a fixed-window quota: Requests per Window per key.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Validate checks that the quota can admit anything at all.
func (c RateLimitConfig) Validate() error {
	if c.Requests < 1 {
		return fmt.Errorf("%w, got %d", ErrRateLimitRequests, c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w, got %s", ErrRateLimitWindow, c.Window)
	}
	return nil
}

// RateLimitStore counts requests per key. retryAfter is in whole seconds and
// only meaningful when the request is refused.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// InMemoryRateLimitStore keeps one window per key in process memory. It is
// used with the memory and postgres row stores, where a single API instance
// owns the layout.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Allow counts one request against key.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	win, ok := s.windows[key]
	if !ok || !now.Before(win.resetAt) {
		win = &rateWindow{resetAt: now.Add(cfg.Window)}
		s.windows[key] = win
	}

	if win.count >= cfg.Requests {
		return false, 0, secondsUntil(now, win.resetAt)
	}
	win.count++
	return true, cfg.Requests - win.count, 0
}

// Cleanup drops expired windows.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, win := range s.windows {
		if !now.Before(win.resetAt) {
			delete(s.windows, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *InMemoryRateLimitStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// RedisRateLimitStore shares windows between API instances that use the
// redis row store. Redis errors fail open: a broken limiter must not take
// the layout editor down with it.
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisRateLimitStore stores counters under prefix+"ratelimit:".
func NewRedisRateLimitStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisRateLimitStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimitStore{
		client: client,
		prefix: prefix + "ratelimit:",
		logger: logger,
		now:    time.Now,
	}
}

// Allow counts one request against key in the current window.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, cfg RateLimitConfig) (bool, int, int) {
	now := s.now()
	window := now.UnixMilli() / cfg.Window.Milliseconds()
	resetAt := time.UnixMilli((window + 1) * cfg.Window.Milliseconds())
	redisKey := s.prefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.PExpire(ctx, redisKey, cfg.Window)
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "key", key, "error", err)
		return true, cfg.Requests, 0
	}

	count := int(incr.Val())
	if count > cfg.Requests {
		return false, 0, secondsUntil(now, resetAt)
	}
	return true, cfg.Requests - count, 0
}

func secondsUntil(now, t time.Time) int {
	secs := int(t.Sub(now).Seconds())
	if t.Sub(now) > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiter limits layout writes per client. Safe methods pass untouched,
// so dashboards polling the layout or holding an event stream never count
// against the quota used by drag and resize saves.
func RateLimiter(store RateLimitStore, cfg RateLimitConfig, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Requests)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), keyFunc(r), cfg)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				slog.WarnContext(r.Context(), "rate limit exceeded",
					"client", keyFunc(r),
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
