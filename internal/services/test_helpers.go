package services

import (
	"context"
	"time"

	"github.com/innkeephq/innkeep/internal/models"
)

// MockIdentityStore implements IdentityStore and MFAStore for testing
type MockIdentityStore struct {
	GetByIDFunc       func(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error)
	GetByEmailFunc    func(ctx context.Context, t models.IdentityType, email string) (*models.Identity, error)
	CreateFunc        func(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	RecordFailureFunc func(ctx context.Context, t models.IdentityType, id string, threshold int, lockout time.Duration) (*models.Identity, error)
	RecordSuccessFunc func(ctx context.Context, t models.IdentityType, id string) error
	UpdatePasswordFunc func(ctx context.Context, t models.IdentityType, id, passwordHash string) error
	SetMFASecretFunc  func(ctx context.Context, t models.IdentityType, id string, encryptedSecret []byte) error
	EnableMFAFunc     func(ctx context.Context, t models.IdentityType, id string) error
	ClearMFAFunc      func(ctx context.Context, t models.IdentityType, id string) error
}

func (m *MockIdentityStore) GetByID(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, t, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) GetByEmail(ctx context.Context, t models.IdentityType, email string) (*models.Identity, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, t, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, identity)
	}
	return nil, models.ErrInternalServer
}

func (m *MockIdentityStore) RecordFailure(ctx context.Context, t models.IdentityType, id string, threshold int, lockout time.Duration) (*models.Identity, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, t, id, threshold, lockout)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) RecordSuccess(ctx context.Context, t models.IdentityType, id string) error {
	if m.RecordSuccessFunc != nil {
		return m.RecordSuccessFunc(ctx, t, id)
	}
	return nil
}

func (m *MockIdentityStore) UpdatePassword(ctx context.Context, t models.IdentityType, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, t, id, passwordHash)
	}
	return nil
}

func (m *MockIdentityStore) SetMFASecret(ctx context.Context, t models.IdentityType, id string, encryptedSecret []byte) error {
	if m.SetMFASecretFunc != nil {
		return m.SetMFASecretFunc(ctx, t, id, encryptedSecret)
	}
	return nil
}

func (m *MockIdentityStore) EnableMFA(ctx context.Context, t models.IdentityType, id string) error {
	if m.EnableMFAFunc != nil {
		return m.EnableMFAFunc(ctx, t, id)
	}
	return nil
}

func (m *MockIdentityStore) ClearMFA(ctx context.Context, t models.IdentityType, id string) error {
	if m.ClearMFAFunc != nil {
		return m.ClearMFAFunc(ctx, t, id)
	}
	return nil
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateSupersedingFunc        func(ctx context.Context, session *models.Session) (*models.Session, error)
	GetActiveByTokenHashFunc     func(ctx context.Context, tokenHash string) (*models.Session, error)
	MarkMFAVerifiedFunc          func(ctx context.Context, sessionID string) error
	InvalidateFunc               func(ctx context.Context, tokenHash string) error
	InvalidateAllForIdentityFunc func(ctx context.Context, t models.IdentityType, identityID string) (int64, error)
	DeleteExpiredFunc            func(ctx context.Context) (int64, error)
}

func (m *MockSessionStore) CreateSuperseding(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateSupersedingFunc != nil {
		return m.CreateSupersedingFunc(ctx, session)
	}
	session.ID = "session-1"
	return session, nil
}

func (m *MockSessionStore) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.GetActiveByTokenHashFunc != nil {
		return m.GetActiveByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionStore) MarkMFAVerified(ctx context.Context, sessionID string) error {
	if m.MarkMFAVerifiedFunc != nil {
		return m.MarkMFAVerifiedFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockSessionStore) Invalidate(ctx context.Context, tokenHash string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionStore) InvalidateAllForIdentity(ctx context.Context, t models.IdentityType, identityID string) (int64, error) {
	if m.InvalidateAllForIdentityFunc != nil {
		return m.InvalidateAllForIdentityFunc(ctx, t, identityID)
	}
	return 0, nil
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockSecurityLogStore implements SecurityLogStore for testing. It records
// entries so tests can assert on what was audited.
type MockSecurityLogStore struct {
	InsertFunc func(ctx context.Context, entry *models.SecurityLogEntry) error
	ListFunc   func(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error)
	Entries    []models.SecurityLogEntry
}

func (m *MockSecurityLogStore) ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, t, identityID, limit)
	}
	entries := make([]models.SecurityLogEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.IdentityID != nil && *e.IdentityID == identityID && e.IdentityType == t {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MockSecurityLogStore) Insert(ctx context.Context, entry *models.SecurityLogEntry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockSecurityLogStore) Actions() []string {
	actions := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// MockGuestStore implements GuestStore for testing
type MockGuestStore struct {
	CreateFunc        func(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	GetByIDFunc       func(ctx context.Context, hotelManagerID, guestID string) (*models.Guest, error)
	ListByManagerFunc func(ctx context.Context, hotelManagerID string, limit, offset int) ([]models.Guest, error)
	UpdateFunc        func(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	DeleteFunc        func(ctx context.Context, hotelManagerID, guestID string) error
}

func (m *MockGuestStore) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, guest)
	}
	guest.ID = "guest-1"
	return guest, nil
}

func (m *MockGuestStore) GetByID(ctx context.Context, hotelManagerID, guestID string) (*models.Guest, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, hotelManagerID, guestID)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuestStore) ListByManager(ctx context.Context, hotelManagerID string, limit, offset int) ([]models.Guest, error) {
	if m.ListByManagerFunc != nil {
		return m.ListByManagerFunc(ctx, hotelManagerID, limit, offset)
	}
	return []models.Guest{}, nil
}

func (m *MockGuestStore) Update(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, guest)
	}
	return guest, nil
}

func (m *MockGuestStore) Delete(ctx context.Context, hotelManagerID, guestID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, hotelManagerID, guestID)
	}
	return nil
}

// MockEmailService implements EmailService and records sends.
type MockEmailService struct {
	ResetEmails   []string
	SetupEmails   []string
	LockoutEmails []string
	SendErr       error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.ResetEmails = append(m.ResetEmails, email)
	return nil
}

func (m *MockEmailService) SendPasswordSetupEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SetupEmails = append(m.SetupEmails, email)
	return nil
}

func (m *MockEmailService) SendLockoutNotification(ctx context.Context, email string, lockedUntil time.Time, ipAddress string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.LockoutEmails = append(m.LockoutEmails, email)
	return nil
}
