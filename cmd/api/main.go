// Package main is the entrypoint for the lreview API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/cache"
	"github.com/lreview/lreview/internal/config"
	"github.com/lreview/lreview/internal/handler"
	"github.com/lreview/lreview/internal/mail"
	"github.com/lreview/lreview/internal/middleware"
	"github.com/lreview/lreview/internal/repository"
	"github.com/lreview/lreview/internal/server"
	"github.com/lreview/lreview/internal/service"
	"github.com/lreview/lreview/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize file storage
	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		logger.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	// Initialize mailer
	var mailer mail.Mailer
	if cfg.MailEnabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SenderEmail, logger)
	} else {
		logger.Warn("SMTP not configured, reset mail will be logged only")
		mailer = mail.NewLogMailer(logger)
	}

	// Initialize token service and business services
	tokens := auth.NewTokenService(cfg.SecretKey, cfg.SessionTokenTTL, cfg.ResetTokenTTL)
	userService := service.NewUserService(repo, cacheClient, tokens, store, mailer, logger)
	postService := service.NewPostService(repo, store, logger)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	authHandler := handler.NewAuthHandler(userService, tokens, logger)
	userHandler := handler.NewUserHandler(userService, cfg.BaseURL, logger)
	postHandler := handler.NewPostHandler(postService, cfg.BaseURL, logger)

	// Setup router
	r := setupRouter(h, healthHandler, authHandler, userHandler, postHandler, repo, cacheClient, tokens, store, cfg, logger)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
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
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	postHandler *handler.PostHandler,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	tokens *auth.TokenService,
	store *storage.LocalStore,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.BodyLimit(cfg.MaxRequestBodySize))

	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", h.Hello)

	// Uploaded files (avatars, post images)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(store.Dir()))))

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger: logger,
		Tokens: tokens,
		Users:  repo,
		Cache:  cacheClient,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/oauth/token", authHandler.Token)
		r.Post("/forget", authHandler.Forget)

		// Redeems the mailed reset-purpose token; not behind the
		// session auth gate.
		r.Put("/reset", authHandler.Reset)

		// Session-authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			r.Route("/user", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Put("/", userHandler.Update)
				r.Put("/avatar", userHandler.UploadAvatar)

				r.Get("/posts", postHandler.List)
				r.Post("/posts", postHandler.Create)

				r.Route("/post/{id}", func(r chi.Router) {
					r.Get("/", postHandler.Get)
					r.Put("/", postHandler.Update)
					r.Delete("/", postHandler.Delete)
				})
			})
		})
	})

	// 404 and 405 handlers
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
