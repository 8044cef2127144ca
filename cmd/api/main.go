// Package main is the entry point for the layout API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/homelayout/internal/api"
	"github.com/onnwee/homelayout/internal/config"
	"github.com/onnwee/homelayout/internal/health"
	"github.com/onnwee/homelayout/internal/location"
	"github.com/onnwee/homelayout/internal/middleware"
	"github.com/onnwee/homelayout/internal/rowstore"
	"github.com/onnwee/homelayout/internal/skills"
	"github.com/onnwee/homelayout/internal/tracing"
	"github.com/onnwee/homelayout/internal/widget"
)

const serviceName = "homelayout"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Home Layout API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until SIGINT or SIGTERM.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		StoreBackend: cfg.StoreBackend,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	checker := health.NewStoreChecker(store, 2*time.Second)
	var limiter middleware.RateLimitStore
	if cfg.RateLimitEnabled {
		limiter = rateLimitStore(ctx, store, cfg.RedisKeyPrefix, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := rowstore.NewMetrics()
	layoutMetrics := widget.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	if cfg.MetricsEnabled {
		for _, m := range []interface{ Register(prometheus.Registerer) error }{storeMetrics, layoutMetrics, httpMetrics} {
			if err := m.Register(reg); err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}
		}
		store = rowstore.WithMetrics(store, storeMetrics)
	} else {
		layoutMetrics = nil
	}

	index := location.NewIndex(store, logger)
	if err := index.Load(ctx); err != nil {
		return err
	}

	types := widget.NewRegistry()
	if err := skills.Register(types); err != nil {
		return fmt.Errorf("failed to register skills: %w", err)
	}

	broadcaster := widget.NewEventBroadcaster(logger)
	go broadcaster.Run(ctx)

	layout := widget.NewLayoutManager(widget.ManagerConfig{
		Store:           store,
		Types:           types,
		Notifier:        broadcaster,
		Metrics:         layoutMetrics,
		Logger:          logger,
		DefaultPageIcon: cfg.DefaultPageIcon,
	})
	if err := layout.Load(ctx); err != nil {
		return err
	}

	routes := api.RouterConfig{
		Locations: api.NewLocationHandlers(index),
		Widgets:   api.NewWidgetHandlers(layout),
		Events:    api.NewEventHandlers(broadcaster, middleware.OriginChecker(cfg.CORSAllowedOrigins)),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			StoreChecker:   checker,
			Subscribers:    broadcaster,
			MetricsEnabled: cfg.MetricsEnabled,
		}),
	}
	if cfg.MetricsEnabled {
		routes.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimiter
	var handler http.Handler = api.NewRouter(routes)
	if cfg.RateLimitEnabled {
		handler = middleware.RateLimiter(limiter, middleware.RateLimitConfig{
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
		}, middleware.ClientIP)(handler)
	}
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	if cfg.MetricsEnabled {
		handler = middleware.HTTPMetrics(httpMetrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if tp.IsEnabled() {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	logger.Info("shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// rateLimitStore shares counters through redis when the layout lives there,
// so every API instance enforces the same quota.
func rateLimitStore(ctx context.Context, store rowstore.Store, prefix string, logger *slog.Logger) middleware.RateLimitStore {
	if rs, ok := store.(*rowstore.RedisStore); ok {
		return middleware.NewRedisRateLimitStore(rs.Client(), prefix, logger)
	}
	mem := middleware.NewInMemoryRateLimitStore()
	go mem.RunCleanup(ctx, time.Minute)
	return mem
}

// openStore connects the configured row store backend. The closer is nil
// for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (rowstore.Store, io.Closer, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := rowstore.OpenPostgres(connectCtx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(connectCtx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, pg, nil
	case config.BackendRedis:
		rs, err := rowstore.OpenRedis(connectCtx, cfg.RedisURL, cfg.RedisKeyPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs, nil
	default:
		logger.Warn("using in-memory row store, layout will not survive a restart")
		return rowstore.NewInMemoryStore(), nil, nil
	}
}
