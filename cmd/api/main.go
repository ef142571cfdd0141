package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/background"
	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/events"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/identity"
	"github.com/BradenHooton/warden/internal/metrics"
	middlewareCustom "github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	"github.com/BradenHooton/warden/internal/routes"
	"github.com/BradenHooton/warden/internal/services"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/hkdf"
)

// identityBackend is what the services need from the configured identity store
type identityBackend interface {
	services.IdentityStore
	services.CredentialProvider
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewAttemptRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	questionRepo := repositories.NewSecurityQuestionRepository(db)

	var identities identityBackend = userRepo
	if cfg.Identity.Provider == "http" {
		identities = identity.NewHTTPProvider(cfg.Identity, logger)
		logger.Info("using external identity provider", slog.String("url", cfg.Identity.HTTPURL))
	}

	// Sinks: metrics, notifications, events
	recorder := metrics.Init(cfg.Server.MetricsEnabled)

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Email.Enabled() {
		sesNotifier, err := services.NewSESNotifier(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	var publisher interface {
		services.EventPublisher
		io.Closer
	} = events.NoopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
	}
	defer publisher.Close()

	sinks := services.Sinks{Notifier: notifier, Events: publisher, Metrics: recorder}
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiter and replay guard share Redis when configured
	limiter, redisClient, err := services.NewRateLimiterFromConfig(context.Background(), cfg.RateLimit, recorder, logger)
	if err != nil {
		logger.Error("failed to initialize rate limiter", slog.Any("error", err))
		os.Exit(1)
	}

	var replayGuard auth.ReplayGuard
	cleanupTasks := []background.Task{
		background.ExpiredLockoutsTask(lockoutRepo, time.Now),
		background.StaleAttemptsTask(attemptRepo, cfg.Auth.AttemptRetention, time.Now),
	}
	if redisClient != nil {
		defer redisClient.Close()
		replayGuard = auth.NewRedisReplayGuard(redisClient)
	} else {
		memoryGuard := auth.NewMemoryReplayGuard()
		replayGuard = memoryGuard
		cleanupTasks = append(cleanupTasks, background.ReplayGuardTask(memoryGuard))
	}

	// Initialize services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Reset.TokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Reset.TimingBaseDelayMs,
		RandomDelayMs: cfg.Reset.TimingRandomDelayMs,
	})

	ledger := services.NewAttemptLedger(attemptRepo, nil)
	lockoutService := services.NewLockoutService(ledger, lockoutRepo, cfg.Lockout, sinks, logger, auditLogger)
	questionService := services.NewSecurityQuestionService(questionRepo, cfg.Reset.MinQuestions, cfg.Reset.RequiredCorrectAnswers, logger)

	decoyKey, err := deriveKey(cfg.Auth.JWTSecret, "warden decoy questions")
	if err != nil {
		logger.Error("failed to derive decoy key", slog.Any("error", err))
		os.Exit(1)
	}

	loginService := services.NewLoginService(identities, lockoutService, limiter, tokenManager, timingDelay, sinks, logger, auditLogger)
	resetService := services.NewPasswordResetService(
		identities, identities, questionService, lockoutService, limiter,
		tokenManager, replayGuard, decoyKey, cfg.Reset, sinks, logger, auditLogger,
	)

	// Bootstrap first admin user if configured
	if cfg.Identity.Provider == "local" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
			logger.Error("failed to ensure admin user", slog.Any("error", err))
		}
		cancel()
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth:              handlers.NewAuthHandler(loginService, logger),
		PasswordReset:     handlers.NewPasswordResetHandler(resetService, logger),
		SecurityQuestions: handlers.NewSecurityQuestionHandler(questionService, logger),
		Admin:             handlers.NewAdminHandler(lockoutService, limiter, logger),
		Health:            handlers.NewHealthHandler(db),
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(pkghttp.NewIPConfig(cfg.Server.TrustedProxies)))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.HTTPMiddleware(recorder))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, tokenManager, limiter, cfg.RateLimit.IPPerMinute, logger)
	if cfg.Server.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval, cleanupTasks...)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
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

// deriveKey derives a 32-byte subkey from the signing secret so the decoy
// question set stays stable across restarts without a separate secret
func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
