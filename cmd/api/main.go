// Package main is the entrypoint for the user and token API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/cache"
	"github.com/penshort/userauth/internal/config"
	"github.com/penshort/userauth/internal/handler"
	"github.com/penshort/userauth/internal/metrics"
	"github.com/penshort/userauth/internal/middleware"
	"github.com/penshort/userauth/internal/repository"
	"github.com/penshort/userauth/internal/server"
	"github.com/penshort/userauth/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns:     cfg.DBMaxConns,
		QueryTimeout: cfg.DBQueryTimeout,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Redis only backs rate limiting; it is optional.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			repo.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; rate limiting disabled")
	}

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Error("failed to initialise token service", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewInMemory()
	userService := service.NewUserService(repo, tokens, service.UserServiceConfig{
		PasswordCost: cfg.BcryptCost,
		TokenTTL:     cfg.TokenTTL,
	}, recorder)

	deps := routerDeps{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		tokens:   tokens,
		users:    handler.NewUserHandler(userService, logger),
		auth:     handler.NewAuthHandler(userService, logger),
		metrics:  handler.NewMetricsHandler(recorder),
	}
	if cacheClient != nil {
		deps.limiter = cacheClient
		deps.health = handler.NewHealthHandler(repo, cacheClient, logger)
	} else {
		deps.health = handler.NewHealthHandler(repo, nil, logger)
	}

	srv := server.New(setupRouter(deps), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"rate_limit", cfg.RateLimitConfigured(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps collects everything setupRouter wires together.
// limiter is nil when Redis is not configured.
type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	tokens   middleware.TokenValidator
	limiter  middleware.IPRateLimiter

	health  *handler.HealthHandler
	users   *handler.UserHandler
	auth    *handler.AuthHandler
	metrics *handler.MetricsHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	h := handler.New(d.logger)
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.CountRequests(d.recorder))
	r.Use(middleware.SecureHeaders(d.cfg.IsProduction()))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	r.Get("/hello", h.Hello)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  d.logger,
		Limiter: d.limiter,
		Enabled: d.cfg.RateLimitEnabled,
		RPS:     d.cfg.RateLimitRPS,
		Burst:   d.cfg.RateLimitBurst,
	}

	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RateLimitIP(rateLimitCfg, "register")).Post("/", d.users.Create)
		r.Get("/{id}", d.users.Get)
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimitIP(rateLimitCfg, "login")).Post("/token", d.auth.Token)
		r.With(middleware.Authenticate(middleware.AuthConfig{
			Logger:  d.logger,
			Tokens:  d.tokens,
			Metrics: d.recorder,
		})).Get("/me", d.auth.Me)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
