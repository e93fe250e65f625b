package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/config"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/handlers"
	middlewareCustom "github.com/innkeephq/innkeep/internal/middleware"
	"github.com/innkeephq/innkeep/internal/ratelimit"
	"github.com/innkeephq/innkeep/internal/repositories"
	"github.com/innkeephq/innkeep/internal/routes"
	"github.com/innkeephq/innkeep/internal/securedata"
	"github.com/innkeephq/innkeep/internal/services"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// SentEmail is one captured outbound message
type SentEmail struct {
	To    string
	Token string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	mu            sync.Mutex
	ResetEmails   []SentEmail
	SetupEmails   []SentEmail
	LockoutEmails []string
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetEmails = append(m.ResetEmails, SentEmail{To: email, Token: token})
	return nil
}

func (m *MockEmailService) SendPasswordSetupEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetupEmails = append(m.SetupEmails, SentEmail{To: email, Token: token})
	return nil
}

func (m *MockEmailService) SendLockoutNotification(ctx context.Context, email string, lockedUntil time.Time, ipAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockoutEmails = append(m.LockoutEmails, email)
	return nil
}

// LastResetToken returns the token from the most recent reset email, or ""
func (m *MockEmailService) LastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ResetEmails) == 0 {
		return ""
	}
	return m.ResetEmails[len(m.ResetEmails)-1].Token
}

// LastSetupToken returns the token from the most recent setup email, or ""
func (m *MockEmailService) LastSetupToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SetupEmails) == 0 {
		return ""
	}
	return m.SetupEmails[len(m.SetupEmails)-1].Token
}

// TestServer wraps httptest.Server with a real database and mocked email
type TestServer struct {
	Server  *httptest.Server
	DB      *database.DB
	Email   *MockEmailService
	Config  *config.Config
	TOTP    *auth.TOTPManager
	Limiter *ratelimit.Limiter

	logger *slog.Logger
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SessionSecret:    "integration-test-secret-32-chars!",
			SessionDuration:  30 * time.Minute,
			ResetTokenTTL:    1 * time.Hour,
			LockoutThreshold: 5,
			LockoutDuration:  15 * time.Minute,
			SecureOpTimeout:  10 * time.Second,
			CleanupInterval:  1 * time.Hour,
		},
		MFA: config.MFAConfig{
			Issuer:      "InnkeepTest",
			Keys:        map[string][]byte{"v1": bytes.Repeat([]byte{0x42}, 32)},
			ActiveKeyID: "v1",
		},
		RateLimit: config.RateLimitConfig{
			// Login is generous enough that the account lockout threshold
			// trips before the IP throttle does.
			Login:   config.ScopeConfig{Max: 50, Window: 1 * time.Minute},
			MFA:     config.ScopeConfig{Max: 50, Window: 1 * time.Minute},
			Storage: config.ScopeConfig{Max: 200, Window: 1 * time.Minute},
			Email:   config.ScopeConfig{Max: 50, Window: 1 * time.Minute},
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}
}

// NewTestServer initializes the complete HTTP stack against a real database
func NewTestServer(db *TestDB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := testConfig()

	identityRepo := repositories.NewIdentityRepository(db.DB)
	sessionRepo := repositories.NewSessionRepository(db.DB)
	securityLogRepo := repositories.NewSecurityLogRepository(db.DB)
	guestRepo := repositories.NewGuestRepository(db.DB)

	limiter := ratelimit.New()

	totpManager, err := auth.NewTOTPManager(cfg.MFA.Keys, cfg.MFA.ActiveKeyID, cfg.MFA.Issuer)
	if err != nil {
		panic(err)
	}

	resetTokenManager := auth.NewResetTokenManager(cfg.Auth.SessionSecret, cfg.Auth.ResetTokenTTL)

	// No padding so failed-login tests run fast
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	auditService := services.NewAuditService(securityLogRepo, logger)
	mockEmail := &MockEmailService{}

	sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionDuration)
	authService := services.NewAuthService(
		identityRepo,
		sessionService,
		resetTokenManager,
		limiter,
		cfg.RateLimit,
		timingDelay,
		auditService,
		mockEmail,
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

	wrapper := securedata.New(limiter, auditService, logger, securedata.Config{
		Scope: ratelimit.Scope{
			Name:   "storage",
			Max:    cfg.RateLimit.Storage.Max,
			Window: cfg.RateLimit.Storage.Window,
		},
		Timeout: cfg.Auth.SecureOpTimeout,
	})
	guestService := services.NewGuestService(guestRepo, wrapper)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig, auth.CookieConfig{})
	mfaHandler := handlers.NewMFAHandler(mfaService, sessionService, ipConfig)
	guestHandler := handlers.NewGuestHandler(guestService)
	auditHandler := handlers.NewAuditHandler(auditService)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Deps{
		AuthHandler:  authHandler,
		MFAHandler:   mfaHandler,
		GuestHandler: guestHandler,
		AuditHandler: auditHandler,
		Sessions:     sessionService,
		Identities:   identityRepo,
		Audit:        auditService,
		IPConfig:     ipConfig,
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	return &TestServer{
		Server:  httptest.NewServer(router),
		DB:      db.DB,
		Email:   mockEmail,
		Config:  cfg,
		TOTP:    totpManager,
		Limiter: limiter,
		logger:  logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses a JSON response body into the target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// LoginResult captures the fields tests care about from a login response
type LoginResult struct {
	SessionToken     string `json:"session_token"`
	RequiresMFA      bool   `json:"requires_mfa"`
	RequiresMFASetup bool   `json:"requires_mfa_setup"`
}

// Login posts credentials to the variant's login route and parses the result
func (ts *TestServer) Login(variant, email, password string) (*LoginResult, int, error) {
	resp, err := ts.Request(http.MethodPost, "/login/"+variant, map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, resp.StatusCode, nil
	}

	var result LoginResult
	if err := ParseJSONResponse(resp, &result); err != nil {
		return nil, resp.StatusCode, err
	}
	return &result, resp.StatusCode, nil
}

// GetErrorCode extracts the machine-readable error code from an error response
func GetErrorCode(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	return errResp.Error, nil
}
