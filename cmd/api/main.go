package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/background"
	"github.com/innkeephq/innkeep/internal/config"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/handlers"
	"github.com/innkeephq/innkeep/internal/middleware"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/ratelimit"
	"github.com/innkeephq/innkeep/internal/repositories"
	"github.com/innkeephq/innkeep/internal/routes"
	"github.com/innkeephq/innkeep/internal/securedata"
	"github.com/innkeephq/innkeep/internal/services"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	identityRepo := repositories.NewIdentityRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	securityLogRepo := repositories.NewSecurityLogRepository(db)
	guestRepo := repositories.NewGuestRepository(db)

	// In-memory rate limiter shared by login, MFA, email, and storage scopes
	limiter := ratelimit.New()

	// TOTP secret encryption and provisioning
	totpManager, err := auth.NewTOTPManager(cfg.MFA.Keys, cfg.MFA.ActiveKeyID, cfg.MFA.Issuer)
	if err != nil {
		logger.Error("failed to initialize totp manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Signed single-use tokens for password reset and first-time setup
	resetTokenManager := auth.NewResetTokenManager(cfg.Auth.SessionSecret, cfg.Auth.ResetTokenTTL)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.DefaultTimingConfig())

	// Audit trail
	auditService := services.NewAuditService(securityLogRepo, logger)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.ResetURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionDuration)
	authService := services.NewAuthService(
		identityRepo,
		sessionService,
		resetTokenManager,
		limiter,
		cfg.RateLimit,
		timingDelay,
		auditService,
		emailService,
		cfg.Auth,
		logger,
	)
	mfaService := services.NewMFAService(
		identityRepo,
		sessionService,
		totpManager,
		limiter,
		cfg.RateLimit.MFA,
		auditService,
		logger,
	)

	// Secure data wrapper fronting all guest record storage access
	wrapper := securedata.New(limiter, auditService, logger, securedata.Config{
		Scope: ratelimit.Scope{
			Name:   "storage",
			Max:    cfg.RateLimit.Storage.Max,
			Window: cfg.RateLimit.Storage.Window,
		},
		Timeout: cfg.Auth.SecureOpTimeout,
	})
	guestService := services.NewGuestService(guestRepo, wrapper)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	authHandler := handlers.NewAuthHandler(authService, ipConfig, cookieConfig)
	mfaHandler := handlers.NewMFAHandler(mfaService, sessionService, ipConfig)
	guestHandler := handlers.NewGuestHandler(guestService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Bootstrap first administrator if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdministrator(ctx, identityRepo, logger); err != nil {
		logger.Error("failed to ensure administrator", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(corsConfig))
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Deps{
		AuthHandler:  authHandler,
		MFAHandler:   mfaHandler,
		GuestHandler: guestHandler,
		AuditHandler: auditHandler,
		Sessions:     sessionService,
		Identities:   identityRepo,
		Audit:        auditService,
		IPConfig:     ipConfig,
		HealthCheck:  healthCheck(db),
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(sessionService, limiter, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func healthCheck(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	}
}

// ensureAdministrator creates the first administrator if ADMIN_EMAIL and
// ADMIN_PASSWORD are set. Administrators cannot self-register, so a fresh
// deployment needs this bootstrap path.
func ensureAdministrator(ctx context.Context, identityRepo *repositories.IdentityRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping administrator creation")
		return nil
	}

	_, err := identityRepo.GetByEmail(ctx, models.Administrator, adminEmail)
	if err == nil {
		logger.Info("administrator already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if administrator exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash administrator password: %w", err)
	}

	_, err = identityRepo.Create(ctx, &models.Identity{
		Type:         models.Administrator,
		Email:        adminEmail,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}

	logger.Info("administrator created", slog.String("email", adminEmail))
	return nil
}
