package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/config"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/ratelimit"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
)

// MFAStore is the identity persistence surface the MFA flows need.
type MFAStore interface {
	GetByID(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error)
	SetMFASecret(ctx context.Context, t models.IdentityType, id string, encryptedSecret []byte) error
	EnableMFA(ctx context.Context, t models.IdentityType, id string) error
	ClearMFA(ctx context.Context, t models.IdentityType, id string) error
}

// MFAService runs the TOTP lifecycle: provisioning, enablement, per-login
// verification, disable, and admin-assisted reset. Secrets are encrypted
// before they reach the store and decrypted only for code checks.
type MFAService struct {
	identities MFAStore
	sessions   *SessionService
	totp       *auth.TOTPManager
	limiter    *ratelimit.Limiter
	mfaScope   ratelimit.Scope
	audit      *AuditService
	logger     *slog.Logger
}

func NewMFAService(
	identities MFAStore,
	sessions *SessionService,
	totp *auth.TOTPManager,
	limiter *ratelimit.Limiter,
	scope config.ScopeConfig,
	audit *AuditService,
	logger *slog.Logger,
) *MFAService {
	return &MFAService{
		identities: identities,
		sessions:   sessions,
		totp:       totp,
		limiter:    limiter,
		mfaScope:   ratelimit.Scope{Name: "mfa", Max: scope.Max, Window: scope.Window},
		audit:      audit,
		logger:     logger,
	}
}

// SetupResult is returned from Setup so the client can render the QR code.
// The plaintext secret never persists; only the encrypted blob is stored.
type SetupResult struct {
	OTPAuthURL string
	QRDataURL  string
}

// Setup provisions a fresh secret for the identity and stores it encrypted
// in the pending state. Calling Setup again before Enable replaces the
// pending secret.
func (s *MFAService) Setup(ctx context.Context, principal *models.Principal, meta RequestMeta) (*SetupResult, error) {
	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	// Re-provisioning an enabled identity would silently invalidate the
	// authenticator the owner already trusts; force an explicit disable first.
	if identity.MFAEnabled {
		return nil, models.ErrConflict
	}

	provisioned, err := s.totp.ProvisionSecret(identity.Email)
	if err != nil {
		s.logger.Error("failed to provision totp secret", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.identities.SetMFASecret(ctx, identity.Type, identity.ID, provisioned.Encrypted); err != nil {
		s.logger.Error("failed to store mfa secret", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       models.ActionMFASetup,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})

	return &SetupResult{OTPAuthURL: provisioned.URL, QRDataURL: provisioned.QRDataURL}, nil
}

// Enable confirms a pending secret with its first valid code and flips the
// identity to MFA-enabled. The code check doubles as the verification step
// for the caller's session, so a freshly enrolled identity is not bounced to
// verify-mfa with a second code.
func (s *MFAService) Enable(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta RequestMeta) error {
	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		return models.ErrUnauthorized
	}

	if identity.MFAEnabled {
		return nil
	}
	if len(identity.MFASecret) == 0 {
		return models.ErrMFANotConfigured
	}

	if err := s.checkCode(ctx, identity, code, meta); err != nil {
		return err
	}

	if err := s.identities.EnableMFA(ctx, identity.Type, identity.ID); err != nil {
		s.logger.Error("failed to enable mfa", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.MarkMFAVerified(ctx, session); err != nil {
		s.logger.Error("failed to mark session mfa-verified", slog.String("session_id", session.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       models.ActionMFAEnabled,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// Verify checks a login-time code and upgrades the pending session.
// Administrators without a confirmed secret cannot pass this gate; their
// MFA obligation is unconditional.
func (s *MFAService) Verify(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta RequestMeta) error {
	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		return models.ErrUnauthorized
	}

	if !identity.MFAEnabled || len(identity.MFASecret) == 0 {
		return models.ErrMFANotConfigured
	}

	if err := s.checkCode(ctx, identity, code, meta); err != nil {
		return err
	}

	if err := s.sessions.MarkMFAVerified(ctx, session); err != nil {
		s.logger.Error("failed to mark session mfa-verified", slog.String("session_id", session.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       models.ActionMFAVerified,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// Disable turns MFA off for a hotel manager after password re-authentication.
// Administrators cannot disable MFA; their obligation is structural.
func (s *MFAService) Disable(ctx context.Context, principal *models.Principal, password string, meta RequestMeta) error {
	if principal.Type == models.Administrator {
		return models.ErrForbidden
	}

	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(identity.PasswordHash, password); err != nil {
		s.audit.Record(ctx, models.SecurityLogEntry{
			IdentityID:   &identity.ID,
			IdentityType: identity.Type,
			Action:       models.ActionMFAFailed,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
			Details:      map[string]any{"reason": "disable_reauth_failed"},
		})
		return models.ErrUnauthorized
	}

	if err := s.identities.ClearMFA(ctx, identity.Type, identity.ID); err != nil {
		s.logger.Error("failed to clear mfa", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &identity.ID,
		IdentityType: identity.Type,
		Action:       models.ActionMFADisabled,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// Reset is the admin-assisted recovery path for a hotel manager who lost
// their authenticator. It wipes the secret and kills every active session;
// the manager signs in with password only and re-enrolls.
func (s *MFAService) Reset(ctx context.Context, actor *models.Principal, targetID string, meta RequestMeta) error {
	if actor.Type != models.Administrator {
		return models.ErrForbidden
	}

	target, err := s.identities.GetByID(ctx, models.HotelManager, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrInternalServer
	}

	if err := s.identities.ClearMFA(ctx, target.Type, target.ID); err != nil {
		s.logger.Error("failed to reset mfa", slog.String("identity_id", target.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.sessions.InvalidateAll(ctx, target.Type, target.ID); err != nil {
		s.logger.Error("failed to invalidate sessions after mfa reset",
			slog.String("identity_id", target.ID), slog.Any("error", err))
	}

	s.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &target.ID,
		IdentityType: target.Type,
		Action:       models.ActionMFAReset,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      map[string]any{"reset_by": actor.ID},
	})
	return nil
}

// Status reports the identity's MFA state for the settings screen.
type MFAStatus struct {
	Required bool `json:"required"`
	Enabled  bool `json:"enabled"`
	Pending  bool `json:"pending"`
}

func (s *MFAService) Status(ctx context.Context, principal *models.Principal) (*MFAStatus, error) {
	identity, err := s.identities.GetByID(ctx, principal.Type, principal.ID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	return &MFAStatus{
		Required: identity.MFARequired(),
		Enabled:  identity.MFAEnabled,
		Pending:  identity.MFAPending(),
	}, nil
}

// checkCode rate-limits, decrypts, and validates one TOTP code. Every
// failed code is audited.
func (s *MFAService) checkCode(ctx context.Context, identity *models.Identity, code string, meta RequestMeta) error {
	if !s.limiter.AllowScope(s.mfaScope, identity.ID) {
		return models.ErrRateLimitExceeded
	}

	secret, err := s.totp.DecryptSecret(identity.MFASecret)
	if err != nil {
		s.logger.Error("failed to decrypt mfa secret", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateCode(secret, code)
	if err != nil {
		s.logger.Error("totp validation error", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		s.audit.Record(ctx, models.SecurityLogEntry{
			IdentityID:   &identity.ID,
			IdentityType: identity.Type,
			Action:       models.ActionMFAFailed,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
		})
		return models.ErrMFAInvalidCode
	}
	return nil
}
