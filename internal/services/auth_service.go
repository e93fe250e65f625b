package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/config"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/ratelimit"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
	pkglogger "github.com/innkeephq/innkeep/pkg/logger"
)

// IdentityStore is the persistence surface AuthService needs. Both identity
// variants sit behind it; callers pass the variant explicitly.
type IdentityStore interface {
	GetByID(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, t models.IdentityType, email string) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	RecordFailure(ctx context.Context, t models.IdentityType, id string, threshold int, lockout time.Duration) (*models.Identity, error)
	RecordSuccess(ctx context.Context, t models.IdentityType, id string) error
	UpdatePassword(ctx context.Context, t models.IdentityType, id, passwordHash string) error
}

// RequestMeta carries the client attribution attached to every audit entry.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService handles login, logout, and the password setup/reset flows.
type AuthService struct {
	identities IdentityStore
	sessions   *SessionService
	resetTM    *auth.ResetTokenManager
	limiter    *ratelimit.Limiter
	loginScope ratelimit.Scope
	emailScope ratelimit.Scope
	timing     *auth.TimingDelay
	audit      *AuditService
	email      EmailService
	cfg        config.AuthConfig
	resetTTL   time.Duration
	logger     *slog.Logger
}

func NewAuthService(
	identities IdentityStore,
	sessions *SessionService,
	resetTM *auth.ResetTokenManager,
	limiter *ratelimit.Limiter,
	rl config.RateLimitConfig,
	timing *auth.TimingDelay,
	audit *AuditService,
	email EmailService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		resetTM:    resetTM,
		limiter:    limiter,
		loginScope: ratelimit.Scope{Name: "login", Max: rl.Login.Max, Window: rl.Login.Window},
		emailScope: ratelimit.Scope{Name: "email", Max: rl.Email.Max, Window: rl.Email.Window},
		timing:     timing,
		audit:      audit,
		email:      email,
		cfg:        cfg,
		resetTTL:   cfg.ResetTokenTTL,
		logger:     logger,
	}
}

// LoginResult is what a successful credential check yields. MFAPending means
// the session exists but cannot reach protected routes until a TOTP code is
// verified against it.
type LoginResult struct {
	Token      string
	Session    *models.Session
	Identity   *models.Identity
	MFAPending bool
}

// Login authenticates one identity variant. Failure ordering matters: the
// rate limit and lockout are checked before bcrypt runs, so an attacker
// cannot burn CPU or probe passwords on a locked account. All failure paths
// return ErrUnauthorized (or ErrAccountLocked) with equalized timing.
func (s *AuthService) Login(ctx context.Context, t models.IdentityType, email, password string, meta RequestMeta) (*LoginResult, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	fail := func(identityID *string, reason string, err error) (*LoginResult, error) {
		s.audit.Record(ctx, models.SecurityLogEntry{
			IdentityID:   identityID,
			IdentityType: t,
			Action:       models.ActionLoginFailed,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
			Details:      map[string]any{"reason": reason},
		})
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	if !s.limiter.AllowScope(s.loginScope, meta.IP+":"+email) {
		return fail(nil, "rate_limited", models.ErrRateLimitExceeded)
	}

	if email == "" || password == "" {
		return fail(nil, "missing_credentials", models.ErrUnauthorized)
	}

	identity, err := s.identities.GetByEmail(ctx, t, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fail(nil, "unknown_email", models.ErrUnauthorized)
		}
		s.logger.Error("failed to get identity by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if identity.IsLocked(time.Now()) {
		s.audit.Record(ctx, models.SecurityLogEntry{
			IdentityID:   &identity.ID,
			IdentityType: t,
			Action:       models.ActionLoginLocked,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrAccountLocked
	}

	// An account without a password has not finished setup
	if identity.PasswordHash == "" {
		return fail(&identity.ID, "password_not_set", models.ErrUnauthorized)
	}

	if err := pkgauth.ComparePassword(identity.PasswordHash, password); err != nil {
		return s.handleFailedPassword(ctx, identity, meta, start)
	}

	if err := s.identities.RecordSuccess(ctx, t, identity.ID); err != nil {
		s.logger.Error("failed to record login success", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// A successful authentication clears the attempt window along with the
	// persistent failure counter
	s.limiter.ResetScope(s.loginScope, meta.IP+":"+email)

	token, session, err := s.sessions.Create(ctx, identity, meta.IP, meta.UserAgent)
	if err != nil {
		s.logger.Error("failed to create session", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: t,
		Action:       models.ActionLoginSuccess,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      map[string]any{"mfa_pending": !session.MFAVerified},
	})

	return &LoginResult{
		Token:      token,
		Session:    session,
		Identity:   identity,
		MFAPending: !session.MFAVerified,
	}, nil
}

func (s *AuthService) handleFailedPassword(ctx context.Context, identity *models.Identity, meta RequestMeta, start time.Time) (*LoginResult, error) {
	updated, err := s.identities.RecordFailure(ctx, identity.Type, identity.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("identity_id", identity.ID), slog.Any("error", err))
		updated = identity
	}

	details := map[string]any{"reason": "invalid_password", "attempts": updated.LoginAttempts}
	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       models.ActionLoginFailed,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      details,
	})

	if updated.LockedUntil != nil && updated.IsLocked(time.Now()) && !identity.IsLocked(time.Now()) {
		s.audit.Record(ctx, models.SecurityLogEntry{
			IdentityID:   &identity.ID,
			IdentityType: identity.Type,
			Action:       models.ActionLockoutTriggered,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
			Details:      map[string]any{"locked_until": updated.LockedUntil.UTC().Format(time.RFC3339)},
		})
		s.notifyLockout(ctx, updated, meta)
	}

	s.timing.WaitFrom(start, false)
	return nil, models.ErrUnauthorized
}

func (s *AuthService) notifyLockout(ctx context.Context, identity *models.Identity, meta RequestMeta) {
	if s.email == nil {
		return
	}
	if !s.limiter.AllowScope(s.emailScope, identity.ID) {
		s.logger.Warn("lockout notification suppressed by email rate limit",
			slog.String("identity_id", identity.ID))
		return
	}
	if err := s.email.SendLockoutNotification(ctx, identity.Email, *identity.LockedUntil, meta.IP); err != nil {
		s.logger.Error("failed to send lockout notification",
			slog.String("identity_id", identity.ID), slog.Any("error", err))
	}
}

// Logout invalidates the caller's session. Unknown tokens are treated as
// already logged out.
func (s *AuthService) Logout(ctx context.Context, token string, principal *models.Principal, meta RequestMeta) error {
	if err := s.sessions.Invalidate(ctx, token); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &principal.ID,
		IdentityType: principal.Type,
		Action:       models.ActionLogout,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// Me returns the authenticated identity.
func (s *AuthService) Me(ctx context.Context, principal *models.Principal) (*models.Identity, error) {
	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}
	return identity, nil
}

// ForgotPassword always reports success to the caller so the endpoint does
// not confirm whether an email is registered. The reset token only goes out
// when the identity exists.
func (s *AuthService) ForgotPassword(ctx context.Context, t models.IdentityType, email string, meta RequestMeta) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	if !s.limiter.AllowScope(s.emailScope, meta.IP) {
		return models.ErrRateLimitExceeded
	}

	identity, err := s.identities.GetByEmail(ctx, t, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("forgot-password lookup failed", slog.Any("error", err))
		}
		return nil
	}

	if identity.PasswordHash == "" {
		// Setup never completed; re-send the provisioning token rather
		// than a reset token for a password that does not exist
		s.sendSetupEmail(ctx, identity)
		return nil
	}

	token, err := s.resetTM.Generate(identity, auth.PurposePasswordReset)
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil
	}

	if err := s.email.SendPasswordResetEmail(ctx, identity.Email, token, time.Now().Add(s.resetTTL)); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("email", pkglogger.SanitizedEmail(identity.Email)), slog.Any("error", err))
	}
	return nil
}

// ProvisionHotelManager creates a passwordless hotel manager account and
// emails a setup token. Only administrators reach this path; the route table
// enforces that. The account cannot log in until setup-password completes.
func (s *AuthService) ProvisionHotelManager(ctx context.Context, actor *models.Principal, email string, meta RequestMeta) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.identities.GetByEmail(ctx, models.HotelManager, email)
	if err == nil {
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("provisioning lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	identity, err := s.identities.Create(ctx, &models.Identity{
		Type:  models.HotelManager,
		Email: email,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create hotel manager", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.sendSetupEmail(ctx, identity)

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: models.HotelManager,
		Action:       models.ActionManagerProvisioned,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      map[string]any{"provisioned_by": actor.ID},
	})

	return identity, nil
}

// sendSetupEmail mints a password-setup token and mails it. Best effort: a
// delivery failure is recoverable through forgot-password, which re-sends
// setup tokens for accounts without a password.
func (s *AuthService) sendSetupEmail(ctx context.Context, identity *models.Identity) {
	token, err := s.resetTM.Generate(identity, auth.PurposePasswordSetup)
	if err != nil {
		s.logger.Error("failed to generate setup token", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return
	}

	if err := s.email.SendPasswordSetupEmail(ctx, identity.Email, token, time.Now().Add(s.resetTTL)); err != nil {
		s.logger.Error("failed to send setup email",
			slog.String("email", pkglogger.SanitizedEmail(identity.Email)), slog.Any("error", err))
	}
}

// ResetPassword consumes a reset token and installs a new password. All
// active sessions are invalidated; the next login starts fresh.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	return s.consumeToken(ctx, token, auth.PurposePasswordReset, newPassword, models.ActionPasswordReset, meta)
}

// SetupPassword consumes a provisioning token to set the first password on
// a freshly created account.
func (s *AuthService) SetupPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	return s.consumeToken(ctx, token, auth.PurposePasswordSetup, newPassword, models.ActionPasswordSetup, meta)
}

func (s *AuthService) consumeToken(ctx context.Context, token, purpose, newPassword, action string, meta RequestMeta) error {
	claims, err := s.resetTM.Validate(token, purpose)
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	identity, err := s.identities.GetByID(ctx, claims.IdentityType, claims.IdentityID)
	if err != nil {
		return models.ErrUnauthorized
	}

	// Fingerprint mismatch means the password changed after the token was
	// issued; the token is single-use by construction.
	if claims.PasswordFP != auth.PasswordFingerprint(identity.PasswordHash) {
		return models.ErrUnauthorized
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.identities.UpdatePassword(ctx, identity.Type, identity.ID, hash); err != nil {
		s.logger.Error("failed to update password", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.sessions.InvalidateAll(ctx, identity.Type, identity.ID); err != nil {
		s.logger.Error("failed to invalidate sessions after password change",
			slog.String("identity_id", identity.ID), slog.Any("error", err))
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       action,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}
