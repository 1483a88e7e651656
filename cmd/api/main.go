package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/background"
	"github.com/BradenHooton/bulletin/internal/config"
	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/handlers"
	middlewareCustom "github.com/BradenHooton/bulletin/internal/middleware"
	"github.com/BradenHooton/bulletin/internal/observability"
	"github.com/BradenHooton/bulletin/internal/repositories"
	"github.com/BradenHooton/bulletin/internal/routes"
	"github.com/BradenHooton/bulletin/internal/seed"
	"github.com/BradenHooton/bulletin/internal/services"
	"github.com/BradenHooton/bulletin/internal/storage"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	metrics.RegisterPoolStats(db.Pool)
	db.SetOutcomeRecorder(metrics)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelStartup()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(startupCtx, db.Pool, logger); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	attachmentRepo := repositories.NewAttachmentRepository(db)
	announcementRepo := repositories.NewAnnouncementRepository(db, attachmentRepo)

	if err := seed.Run(startupCtx, roleRepo, userRepo, cfg, logger); err != nil {
		logger.Error("failed to seed roles", slog.Any("error", err))
		os.Exit(1)
	}

	// Auth
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpires)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	authService := services.NewAuthService(userRepo, roleRepo, tokenManager, timingDelay, services.AuthSettings{
		SaltRounds:           cfg.Auth.SaltRounds,
		MaxLoginFailures:     cfg.Auth.MaxLoginFailures,
		VerificationTokenTTL: cfg.Auth.VerificationTokenTTL,
		PasswordResetTTL:     cfg.Auth.PasswordResetTTL,
		UnlockTokenTTL:       cfg.Auth.UnlockTokenTTL,
	}, logger, auditLogger, metrics)

	// Email
	transport, err := newEmailTransport(startupCtx, cfg.Email)
	if err != nil {
		logger.Error("failed to initialize email transport", slog.Any("error", err))
		os.Exit(1)
	}
	mailer := services.NewMailer(transport, cfg.Email.FromAddress, logger)

	// Uploads
	uploader, err := storage.NewUploader(cfg.Uploads.Dir, storage.Limits{
		MaxFiles:    cfg.Uploads.MaxFiles,
		MaxFileSize: cfg.Uploads.MaxFileSize,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize upload storage", slog.Any("error", err))
		os.Exit(1)
	}

	// Services
	userService := services.NewUserService(userRepo, roleRepo, authService, logger)
	roleService := services.NewRoleService(roleRepo, userRepo, logger)
	accountFlows := services.NewAccountFlows(authService, userService, mailer, services.AccountLinks{
		Verification:     cfg.Email.VerificationURL,
		PasswordRecovery: cfg.Email.PasswordRecoveryURL,
		Unlock:           cfg.Email.UnlockURL,
	}, logger)
	announcementService := services.NewAnnouncementService(announcementRepo, attachmentRepo, userRepo, db, uploader, metrics, logger)

	// Handlers
	h := routes.Handlers{
		Auth:          handlers.NewAuthHandler(authService, accountFlows, logger),
		Users:         handlers.NewUserHandler(userService, accountFlows, logger),
		Roles:         handlers.NewRoleHandler(roleService, logger),
		Announcements: handlers.NewAnnouncementHandler(announcementService, uploader, logger),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(&pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", handlers.Health(db))
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/"+cfg.Server.APIVersion, func(r chi.Router) {
		r.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
			Requests: cfg.RateLimit.MaxRequests,
			Window:   cfg.RateLimit.Window,
		}))
		routes.RegisterRoutes(r, h, authService, middlewareCustom.RateLimitConfig{
			Requests: cfg.RateLimit.AuthRequestsPerMinute,
			Window:   time.Minute,
		}, logger)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Reconciliation sweep
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var cleanupManager *background.CleanupManager
	if cfg.Cleanup.Enabled {
		cleanupManager = background.NewCleanupManager(userRepo, attachmentRepo, uploader, metrics, logger, cfg.Uploads.OrphanGracePeriod)
		if err := cleanupManager.Start(bgCtx, cfg.Cleanup.Schedule); err != nil {
			logger.Error("failed to start cleanup manager", slog.Any("error", err))
			os.Exit(1)
		}
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	bgCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newEmailTransport(ctx context.Context, cfg config.EmailConfig) (services.EmailTransport, error) {
	switch cfg.Provider {
	case "ses":
		t, err := services.NewSESTransportFromRegion(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "smtp":
		return services.NewSMTPTransport(services.NewSMTPDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
