package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	genaigateway "github.com/ferro-labs/genai-gateway"
	"github.com/ferro-labs/genai-gateway/internal/api"
	"github.com/ferro-labs/genai-gateway/internal/keypool"
	"github.com/ferro-labs/genai-gateway/internal/logging"
	"github.com/ferro-labs/genai-gateway/internal/ratelimit"
	"github.com/ferro-labs/genai-gateway/internal/upstream"
	"github.com/ferro-labs/genai-gateway/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "path to a JSON or YAML config file")
	flag.Parse()

	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pool := keypool.New(cfg.Provider.APIKeys, cfg.Provider.FailureCooldown.Std())
	if pool.Size() == 0 {
		slog.Warn("no provider API keys configured; provider routes will answer ProviderKeyNotConfigured")
	}
	up := upstream.New(pool, upstream.Options{
		RoutingMode: cfg.Provider.RoutingMode,
		BaseURL:     cfg.Provider.BaseURL,
		APIVersion:  cfg.Provider.APIVersion,
		Project:     cfg.Provider.Project,
		Location:    cfg.Provider.Location,
	}, nil)

	r := newRouter(cfg, up, time.Now())

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("gateway listening",
		"version", version.Short(),
		"addr", srv.Addr,
		"routing_mode", cfg.Provider.RoutingMode,
		"keys", pool.Size(),
		"failure_cooldown", cfg.Provider.FailureCooldown.String(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		slog.Error("server error", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	slog.Info("server stopped")
}

// loadConfig layers defaults, an optional config file, .env and the process
// environment, then validates the result.
func loadConfig(path string) (genaigateway.Config, error) {
	cfg := genaigateway.Defaults()
	if path != "" {
		loaded, err := genaigateway.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	if err := genaigateway.LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := genaigateway.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := genaigateway.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newRouter builds the HTTP router.
func newRouter(cfg genaigateway.Config, up *upstream.Client, started time.Time) http.Handler {
	r := chi.NewRouter()
	if cfg.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins...))

	r.Handle("/metrics", promhttp.Handler())

	var limiter *ratelimit.Store
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		limiter = ratelimit.NewStore(rl.RequestsPerSecond, rl.Burst)
	}

	h := &api.Handlers{
		Upstream: up,
		Service: api.ServiceInfo{
			Name:        cfg.Service.Name,
			Environment: cfg.Service.Environment,
		},
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxJSONBytes:   cfg.Server.MaxJSONBytes,
		Started:        started,
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter))
		r.Mount("/", h.Routes())
	})

	r.NotFound(notFoundHandler(cfg.Server.StaticDir))
	return r
}
