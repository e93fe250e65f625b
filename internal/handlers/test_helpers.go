package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipal attaches an authenticated principal for testing routes that
// normally sit behind the auth middleware.
func WithPrincipal(req *http.Request, principal *models.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), principal))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "error code mismatch")
	assert.NotEmpty(t, resp.Message, "error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, t models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error)
	LogoutFunc         func(ctx context.Context, token string, principal *models.Principal, meta services.RequestMeta) error
	MeFunc             func(ctx context.Context, principal *models.Principal) (*models.Identity, error)
	ForgotPasswordFunc func(ctx context.Context, t models.IdentityType, email string, meta services.RequestMeta) error
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	SetupPasswordFunc  func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ProvisionFunc      func(ctx context.Context, actor *models.Principal, email string, meta services.RequestMeta) (*models.Identity, error)
}

func (m *MockAuthService) ProvisionHotelManager(ctx context.Context, actor *models.Principal, email string, meta services.RequestMeta) (*models.Identity, error) {
	if m.ProvisionFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.ProvisionFunc(ctx, actor, email, meta)
}

func (m *MockAuthService) Login(ctx context.Context, t models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, t, email, password, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, token string, principal *models.Principal, meta services.RequestMeta) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token, principal, meta)
}

func (m *MockAuthService) Me(ctx context.Context, principal *models.Principal) (*models.Identity, error) {
	if m.MeFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.MeFunc(ctx, principal)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, t models.IdentityType, email string, meta services.RequestMeta) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, t, email, meta)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrUnauthorized
	}
	return m.ResetPasswordFunc(ctx, token, newPassword, meta)
}

func (m *MockAuthService) SetupPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
	if m.SetupPasswordFunc == nil {
		return models.ErrUnauthorized
	}
	return m.SetupPasswordFunc(ctx, token, newPassword, meta)
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	SetupFunc   func(ctx context.Context, principal *models.Principal, meta services.RequestMeta) (*services.SetupResult, error)
	EnableFunc  func(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error
	VerifyFunc  func(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error
	DisableFunc func(ctx context.Context, principal *models.Principal, password string, meta services.RequestMeta) error
	ResetFunc   func(ctx context.Context, actor *models.Principal, targetID string, meta services.RequestMeta) error
	StatusFunc  func(ctx context.Context, principal *models.Principal) (*services.MFAStatus, error)
}

func (m *MockMFAService) Setup(ctx context.Context, principal *models.Principal, meta services.RequestMeta) (*services.SetupResult, error) {
	if m.SetupFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.SetupFunc(ctx, principal, meta)
}

func (m *MockMFAService) Enable(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error {
	if m.EnableFunc == nil {
		return models.ErrMFAInvalidCode
	}
	return m.EnableFunc(ctx, principal, session, code, meta)
}

func (m *MockMFAService) Verify(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error {
	if m.VerifyFunc == nil {
		return models.ErrMFAInvalidCode
	}
	return m.VerifyFunc(ctx, principal, session, code, meta)
}

func (m *MockMFAService) Disable(ctx context.Context, principal *models.Principal, password string, meta services.RequestMeta) error {
	if m.DisableFunc == nil {
		return models.ErrUnauthorized
	}
	return m.DisableFunc(ctx, principal, password, meta)
}

func (m *MockMFAService) Reset(ctx context.Context, actor *models.Principal, targetID string, meta services.RequestMeta) error {
	if m.ResetFunc == nil {
		return models.ErrForbidden
	}
	return m.ResetFunc(ctx, actor, targetID, meta)
}

func (m *MockMFAService) Status(ctx context.Context, principal *models.Principal) (*services.MFAStatus, error) {
	if m.StatusFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.StatusFunc(ctx, principal)
}

// MockSessionValidator implements auth.SessionValidator for testing
type MockSessionValidator struct {
	ValidateFunc func(ctx context.Context, token string) (*models.Session, error)
}

func (m *MockSessionValidator) Validate(ctx context.Context, token string) (*models.Session, error) {
	if m.ValidateFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.ValidateFunc(ctx, token)
}

// MockGuestService implements GuestServiceInterface for testing
type MockGuestService struct {
	CreateFunc func(ctx context.Context, actor models.Principal, in *services.GuestInput) (any, error)
	GetFunc    func(ctx context.Context, actor models.Principal, guestID string) (any, error)
	ListFunc   func(ctx context.Context, actor models.Principal, limit, offset int) (any, error)
	UpdateFunc func(ctx context.Context, actor models.Principal, guestID string, in *services.GuestInput) (any, error)
	DeleteFunc func(ctx context.Context, actor models.Principal, guestID string) error
}

func (m *MockGuestService) Create(ctx context.Context, actor models.Principal, in *services.GuestInput) (any, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, actor, in)
}

func (m *MockGuestService) Get(ctx context.Context, actor models.Principal, guestID string) (any, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, actor, guestID)
}

func (m *MockGuestService) List(ctx context.Context, actor models.Principal, limit, offset int) (any, error) {
	if m.ListFunc == nil {
		return []any{}, nil
	}
	return m.ListFunc(ctx, actor, limit, offset)
}

func (m *MockGuestService) Update(ctx context.Context, actor models.Principal, guestID string, in *services.GuestInput) (any, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, actor, guestID, in)
}

func (m *MockGuestService) Delete(ctx context.Context, actor models.Principal, guestID string) error {
	if m.DeleteFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteFunc(ctx, actor, guestID)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListForIdentityFunc func(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error)
}

func (m *MockAuditService) ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error) {
	if m.ListForIdentityFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.ListForIdentityFunc(ctx, t, identityID, limit)
}
