package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/innkeephq/innkeep/internal/handlers"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	"github.com/stretchr/testify/assert"
)

func managerPrincipal() *models.Principal {
	return &models.Principal{ID: "identity-1", Type: models.HotelManager, MFAVerified: true}
}

func TestMFASetup_ReturnsQRCode(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		SetupFunc: func(ctx context.Context, principal *models.Principal, meta services.RequestMeta) (*services.SetupResult, error) {
			return &services.SetupResult{
				OTPAuthURL: "otpauth://totp/Innkeep:manager@grandhotel.test?secret=ABC",
				QRDataURL:  "data:image/png;base64,xyz",
			}, nil
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, &handlers.MockSessionValidator{}, nil)

	req := handlers.WithPrincipal(handlers.NewTestRequest(t, "POST", "/setup-mfa", nil), managerPrincipal())
	w := httptest.NewRecorder()
	handler.Setup(w, req)

	var resp handlers.MFASetupResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Contains(t, resp.OTPAuthURL, "otpauth://totp/")
	assert.Contains(t, resp.QRCode, "data:image/png")
}

func TestMFASetup_AlreadyEnabled_Conflict(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		SetupFunc: func(ctx context.Context, principal *models.Principal, meta services.RequestMeta) (*services.SetupResult, error) {
			return nil, models.ErrConflict
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, &handlers.MockSessionValidator{}, nil)

	req := handlers.WithPrincipal(handlers.NewTestRequest(t, "POST", "/setup-mfa", nil), managerPrincipal())
	w := httptest.NewRecorder()
	handler.Setup(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestMFAEnable_RejectsMalformedCode(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{}, &handlers.MockSessionValidator{}, nil)

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		req := handlers.WithPrincipal(
			handlers.NewTestRequest(t, "POST", "/enable-mfa", handlers.MFACodeRequest{Code: code}),
			managerPrincipal(),
		)
		w := httptest.NewRecorder()
		handler.Enable(w, req)

		handlers.AssertErrorResponse(t, w, 400, "bad_request")
	}
}

func TestMFAEnable_PassesSessionThrough(t *testing.T) {
	session := &models.Session{ID: "session-1", IdentityID: "identity-1", IdentityType: models.Administrator}

	var got *models.Session
	mockMFA := &handlers.MockMFAService{
		EnableFunc: func(ctx context.Context, principal *models.Principal, s *models.Session, code string, meta services.RequestMeta) error {
			got = s
			return nil
		},
	}
	sessions := &handlers.MockSessionValidator{
		ValidateFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return session, nil
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, sessions, nil)

	req := handlers.NewTestRequest(t, "POST", "/enable-mfa", handlers.MFACodeRequest{Code: "123456"})
	req.Header.Set("Authorization", "Bearer opaque-token")
	req = handlers.WithPrincipal(req, &models.Principal{ID: "identity-1", Type: models.Administrator})

	w := httptest.NewRecorder()
	handler.Enable(w, req)

	assert.Equal(t, 200, w.Code)
	// The enrollment call carries the caller's session so it can be upgraded
	// without a separate verify round trip
	assert.Equal(t, session.ID, got.ID)
}

func TestMFAVerify_UpgradesPendingSession(t *testing.T) {
	session := &models.Session{ID: "session-1", IdentityID: "identity-1", IdentityType: models.HotelManager}

	var verified bool
	mockMFA := &handlers.MockMFAService{
		VerifyFunc: func(ctx context.Context, principal *models.Principal, s *models.Session, code string, meta services.RequestMeta) error {
			assert.Equal(t, session.ID, s.ID)
			assert.Equal(t, "123456", code)
			verified = true
			return nil
		},
	}
	sessions := &handlers.MockSessionValidator{
		ValidateFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return session, nil
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, sessions, nil)

	req := handlers.NewTestRequest(t, "POST", "/verify-mfa", handlers.MFACodeRequest{Code: "123456"})
	req.Header.Set("Authorization", "Bearer opaque-token")
	req = handlers.WithPrincipal(req, &models.Principal{ID: "identity-1", Type: models.HotelManager})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	assert.Equal(t, 200, w.Code)
	assert.True(t, verified)
}

func TestMFAVerify_WrongCode_Unauthorized(t *testing.T) {
	sessions := &handlers.MockSessionValidator{
		ValidateFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return &models.Session{ID: "session-1"}, nil
		},
	}
	mockMFA := &handlers.MockMFAService{
		VerifyFunc: func(ctx context.Context, principal *models.Principal, s *models.Session, code string, meta services.RequestMeta) error {
			return models.ErrMFAInvalidCode
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, sessions, nil)

	req := handlers.NewTestRequest(t, "POST", "/verify-mfa", handlers.MFACodeRequest{Code: "000000"})
	req.Header.Set("Authorization", "Bearer opaque-token")
	req = handlers.WithPrincipal(req, &models.Principal{ID: "identity-1", Type: models.HotelManager})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMFAStatus(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		StatusFunc: func(ctx context.Context, principal *models.Principal) (*services.MFAStatus, error) {
			return &services.MFAStatus{Required: true, Enabled: true}, nil
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, &handlers.MockSessionValidator{}, nil)

	req := handlers.WithPrincipal(handlers.NewTestRequest(t, "GET", "/mfa-status", nil), managerPrincipal())
	w := httptest.NewRecorder()
	handler.Status(w, req)

	var resp services.MFAStatus
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Required)
	assert.True(t, resp.Enabled)
}

func TestMFADisable_WrongPassword(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		DisableFunc: func(ctx context.Context, principal *models.Principal, password string, meta services.RequestMeta) error {
			return models.ErrUnauthorized
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, &handlers.MockSessionValidator{}, nil)

	req := handlers.WithPrincipal(
		handlers.NewTestRequest(t, "POST", "/disable-mfa", handlers.DisableMFARequest{Password: "wrong"}),
		managerPrincipal(),
	)
	w := httptest.NewRecorder()
	handler.Disable(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMFAReset_NonAdminForbidden(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		ResetFunc: func(ctx context.Context, actor *models.Principal, targetID string, meta services.RequestMeta) error {
			return models.ErrForbidden
		},
	}
	handler := handlers.NewMFAHandler(mockMFA, &handlers.MockSessionValidator{}, nil)

	req := handlers.WithPrincipal(
		handlers.NewTestRequest(t, "POST", "/reset-mfa", handlers.ResetMFARequest{
			HotelManagerID: "2c1f3a9e-9b7d-4f7e-8a3e-1d2c3b4a5f6e",
		}),
		managerPrincipal(),
	)
	w := httptest.NewRecorder()
	handler.Reset(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}
