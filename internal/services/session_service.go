package services

import (
	"context"
	"time"

	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/pkg/auth"
)

type SessionStore interface {
	CreateSuperseding(ctx context.Context, session *models.Session) (*models.Session, error)
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	MarkMFAVerified(ctx context.Context, sessionID string) error
	Invalidate(ctx context.Context, tokenHash string) error
	InvalidateAllForIdentity(ctx context.Context, t models.IdentityType, identityID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionService owns the opaque-token session lifecycle. Raw tokens exist
// only in transit; the store only ever sees their SHA-256 digest.
type SessionService struct {
	store    SessionStore
	duration time.Duration
}

func NewSessionService(store SessionStore, duration time.Duration) *SessionService {
	return &SessionService{store: store, duration: duration}
}

// Create mints a fresh token and supersedes any existing active session for
// the identity. The session starts MFA-verified only when the identity has
// no MFA obligation; otherwise the caller holds a pending session until a
// code is verified.
func (s *SessionService) Create(ctx context.Context, identity *models.Identity, ip, userAgent string) (string, *models.Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		TokenHash:    auth.HashToken(token),
		IdentityID:   identity.ID,
		IdentityType: identity.Type,
		IPAddress:    ip,
		UserAgent:    userAgent,
		MFAVerified:  !identity.MFARequired(),
		ExpiresAt:    time.Now().Add(s.duration),
	}

	created, err := s.store.CreateSuperseding(ctx, session)
	if err != nil {
		return "", nil, err
	}
	return token, created, nil
}

// Validate resolves a raw bearer token to its active, unexpired session.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Session, error) {
	session, err := s.store.GetActiveByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	return session, nil
}

// MarkMFAVerified upgrades a pending session after a successful code check.
// Idempotent; verifying an already-verified session is a no-op.
func (s *SessionService) MarkMFAVerified(ctx context.Context, session *models.Session) error {
	if session.MFAVerified {
		return nil
	}
	if err := s.store.MarkMFAVerified(ctx, session.ID); err != nil {
		return err
	}
	session.MFAVerified = true
	return nil
}

func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	return s.store.Invalidate(ctx, auth.HashToken(token))
}

// InvalidateAll kills every active session for an identity, used after
// password and MFA resets.
func (s *SessionService) InvalidateAll(ctx context.Context, t models.IdentityType, identityID string) (int64, error) {
	return s.store.InvalidateAllForIdentity(ctx, t, identityID)
}

// DeleteExpired purges expired rows; called from the background janitor.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx)
}
