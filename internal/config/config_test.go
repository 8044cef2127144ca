package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var envKeys = []string{
	"HOMELAYOUT_PORT", "PORT", "HOMELAYOUT_ENV", "ENV",
	"STORE_BACKEND", "DATABASE_URL", "REDIS_URL", "REDIS_KEY_PREFIX",
	"DEFAULT_PAGE_ICON", "METRICS_ENABLED", "TRACING_ENABLED", "TRACING_INSECURE",
	"TRACING_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "TRACING_SAMPLE_RATE",
	"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
}

// clearEnv blanks every variable Load reads; an empty value counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("expected env %s, got %s", DefaultEnv, cfg.Env)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
	if cfg.DefaultPageIcon != "fas fa-biohazard" {
		t.Errorf("unexpected default icon %q", cfg.DefaultPageIcon)
	}
	if !cfg.MetricsEnabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.TracingSampleRate != DefaultTracingSampleRate {
		t.Errorf("expected sample rate %v, got %v", DefaultTracingSampleRate, cfg.TracingSampleRate)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("expected no cross-origin dashboards by default, got %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitRequests != DefaultRateLimitRequests || cfg.RateLimitWindow != DefaultRateLimitWindow {
		t.Errorf("unexpected rate limit defaults: %v %d per %s", cfg.RateLimitEnabled, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
}

func TestLoad_EdgePolicy(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		wantOrigins []string
		wantLimit   int
		wantWindow  time.Duration
		wantErr     error
	}{
		{
			name:        "origin list",
			envVars:     map[string]string{"CORS_ALLOWED_ORIGINS": "https://dash.example, http://tablet.local:3000,"},
			wantOrigins: []string{"https://dash.example", "http://tablet.local:3000"},
			wantLimit:   DefaultRateLimitRequests,
			wantWindow:  DefaultRateLimitWindow,
		},
		{
			name:       "custom quota",
			envVars:    map[string]string{"RATE_LIMIT_REQUESTS": "120", "RATE_LIMIT_WINDOW": "30s"},
			wantLimit:  120,
			wantWindow: 30 * time.Second,
		},
		{
			name:       "zero quota",
			envVars:    map[string]string{"RATE_LIMIT_REQUESTS": "0"},
			wantLimit:  0,
			wantWindow: DefaultRateLimitWindow,
			wantErr:    ErrInvalidRateLimit,
		},
		{
			name:       "zero quota while disabled",
			envVars:    map[string]string{"RATE_LIMIT_ENABLED": "false", "RATE_LIMIT_REQUESTS": "0"},
			wantLimit:  0,
			wantWindow: DefaultRateLimitWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, errs := Load("")
			if tt.wantErr != nil {
				found := false
				for _, err := range errs {
					if errors.Is(err, tt.wantErr) {
						found = true
					}
				}
				if !found {
					t.Errorf("expected %v, got %v", tt.wantErr, errs)
				}
			} else if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if !reflect.DeepEqual(cfg.CORSAllowedOrigins, tt.wantOrigins) {
				t.Errorf("origins = %v, want %v", cfg.CORSAllowedOrigins, tt.wantOrigins)
			}
			if cfg.RateLimitRequests != tt.wantLimit || cfg.RateLimitWindow != tt.wantWindow {
				t.Errorf("quota = %d per %s, want %d per %s", cfg.RateLimitRequests, cfg.RateLimitWindow, tt.wantLimit, tt.wantWindow)
			}
		})
	}
}

func TestLoad_InvalidRateLimitWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_WINDOW", "a minute")
	if _, errs := Load(""); len(errs) == 0 {
		t.Error("expected an error for an unparsable window")
	}
}

func TestLoad_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}, ErrMissingDatabaseURL},
		{"postgres with url", map[string]string{"STORE_BACKEND": "Postgres", "DATABASE_URL": "postgres://localhost/homelayout"}, nil},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}, ErrMissingRedisURL},
		{"redis with url", map[string]string{"STORE_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379/0"}, nil},
		{"unknown backend", map[string]string{"STORE_BACKEND": "sqlite"}, ErrUnknownBackend},
		{"bad port", map[string]string{"PORT": "eighty"}, ErrInvalidPort},
		{"port out of range", map[string]string{"HOMELAYOUT_PORT": "70000"}, ErrInvalidPort},
		{"bad sample rate", map[string]string{"TRACING_SAMPLE_RATE": "1.5"}, ErrInvalidSampleRate},
		{"bad bool", map[string]string{"METRICS_ENABLED": "sometimes"}, ErrInvalidBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, errs := Load("")
			if tt.wantErr == nil {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %v among %v", tt.wantErr, errs)
			}
		})
	}
}

func TestLoad_PortPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HOMELAYOUT_PORT", "9100")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9100 {
		t.Errorf("expected HOMELAYOUT_PORT to win, got %d", cfg.Port)
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`port: 9090
env: staging
store_backend: redis
redis_url: redis://cache:6379/1
default_page_icon: fas fa-home
metrics_enabled: false
tracing_enabled: true
tracing_sample_rate: 0.5
cors_allowed_origins:
  - https://dash.example
rate_limit_window: 10s
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("REDIS_URL", "redis://override:6379/2")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9090 || cfg.Env != "staging" {
		t.Errorf("expected file values, got port=%d env=%s", cfg.Port, cfg.Env)
	}
	if cfg.RedisURL != "redis://override:6379/2" {
		t.Errorf("expected env to override file, got %s", cfg.RedisURL)
	}
	if cfg.DefaultPageIcon != "fas fa-home" {
		t.Errorf("expected icon from file, got %q", cfg.DefaultPageIcon)
	}
	if cfg.MetricsEnabled {
		t.Error("expected metrics disabled by file")
	}
	if !cfg.TracingEnabled || cfg.TracingSampleRate != 0.5 {
		t.Errorf("expected tracing enabled at 0.5, got %v at %v", cfg.TracingEnabled, cfg.TracingSampleRate)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://dash.example" {
		t.Errorf("expected origins from file, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitWindow != 10*time.Second {
		t.Errorf("expected 10s window from file, got %s", cfg.RateLimitWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg, errs := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg != nil || len(errs) != 1 {
		t.Errorf("expected a single load error, got cfg=%v errs=%v", cfg, errs)
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "<not set>"},
		{"postgres://user:secret@db:5432/homelayout", "postgres://user:****@db:5432/homelayout"},
		{"redis://:secret@cache:6379/0", "redis://:****@cache:6379/0"},
		{"redis://cache:6379/0", "redis://cache:6379/0"},
		{"postgres://user@db/homelayout", "postgres://user@db/homelayout"},
		{"notaurl-but-long", "nota****"},
	}
	for _, tt := range tests {
		if got := maskURL(tt.input); got != tt.want {
			t.Errorf("maskURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLogSummary_MasksCredentials(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:hunter22@db/x", RedisURL: "redis://:pw@cache:6379"}
	summary := cfg.LogSummary()
	if summary["database_url"] != "postgres://u:****@db/x" {
		t.Errorf("database_url not masked: %s", summary["database_url"])
	}
	if summary["redis_url"] != "redis://:****@cache:6379" {
		t.Errorf("redis_url not masked: %s", summary["redis_url"])
	}
}
