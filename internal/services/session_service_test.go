package services

import (
	"context"
	"testing"
	"time"

	"github.com/innkeephq/innkeep/internal/models"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Create_StoresOnlyTokenHash(t *testing.T) {
	var stored *models.Session
	store := &MockSessionStore{
		CreateSupersedingFunc: func(ctx context.Context, session *models.Session) (*models.Session, error) {
			stored = session
			session.ID = "session-1"
			return session, nil
		},
	}
	svc := NewSessionService(store, 2*time.Hour)

	identity := &models.Identity{ID: "identity-1", Type: models.HotelManager}
	token, session, err := svc.Create(context.Background(), identity, "203.0.113.7", "go-test")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotContains(t, stored.TokenHash, token)
	assert.Equal(t, pkgauth.HashToken(token), stored.TokenHash)
	assert.True(t, session.MFAVerified, "manager without MFA starts verified")
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), session.ExpiresAt, 5*time.Second)
}

func TestSessionService_Create_MFAObligationStartsPending(t *testing.T) {
	svc := NewSessionService(&MockSessionStore{}, 2*time.Hour)

	admin := &models.Identity{ID: "admin-1", Type: models.Administrator}
	_, session, err := svc.Create(context.Background(), admin, "203.0.113.7", "go-test")
	require.NoError(t, err)
	assert.False(t, session.MFAVerified, "admins always owe MFA")

	manager := &models.Identity{ID: "identity-1", Type: models.HotelManager, MFAEnabled: true}
	_, session, err = svc.Create(context.Background(), manager, "203.0.113.7", "go-test")
	require.NoError(t, err)
	assert.False(t, session.MFAVerified)
}

func TestSessionService_Validate_UnknownTokenUnauthorized(t *testing.T) {
	svc := NewSessionService(&MockSessionStore{}, 2*time.Hour)

	_, err := svc.Validate(context.Background(), "bogus-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSessionService_Validate_LooksUpByHash(t *testing.T) {
	want := &models.Session{ID: "session-1", TokenHash: pkgauth.HashToken("raw-token")}
	store := &MockSessionStore{
		GetActiveByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.Session, error) {
			if tokenHash == want.TokenHash {
				return want, nil
			}
			return nil, models.ErrNotFound
		},
	}
	svc := NewSessionService(store, 2*time.Hour)

	got, err := svc.Validate(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestSessionService_MarkMFAVerified_Idempotent(t *testing.T) {
	calls := 0
	store := &MockSessionStore{
		MarkMFAVerifiedFunc: func(ctx context.Context, sessionID string) error {
			calls++
			return nil
		},
	}
	svc := NewSessionService(store, 2*time.Hour)

	session := &models.Session{ID: "session-1"}
	require.NoError(t, svc.MarkMFAVerified(context.Background(), session))
	require.NoError(t, svc.MarkMFAVerified(context.Background(), session))

	assert.Equal(t, 1, calls)
	assert.True(t, session.MFAVerified)
}
