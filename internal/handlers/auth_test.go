package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/handlers"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginRouter(h *handlers.AuthHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/login/{variant}", h.Login)
	return r
}

func TestLogin_HotelManager_Success(t *testing.T) {
	var gotType models.IdentityType
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, typ models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
			gotType = typ
			return &services.LoginResult{
				Token: "opaque-token-123",
				Session: &models.Session{
					ExpiresAt:   time.Now().Add(2 * time.Hour),
					MFAVerified: true,
				},
				Identity: &models.Identity{ID: "identity-1", Type: typ},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/hotel", handlers.LoginRequest{
		Email:    "manager@grandhotel.test",
		Password: "CorrectHorse9!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, models.HotelManager, gotType)
	assert.Equal(t, "opaque-token-123", resp.SessionToken)
	assert.False(t, resp.RequiresMFA)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_AdminVariant_RequiresMFASetup(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, typ models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
			assert.Equal(t, models.Administrator, typ)
			return &services.LoginResult{
				Token:      "opaque-token-456",
				Session:    &models.Session{ExpiresAt: time.Now().Add(2 * time.Hour)},
				Identity:   &models.Identity{ID: "admin-1", Type: typ},
				MFAPending: true,
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/admin", handlers.LoginRequest{
		Email:    "admin@innkeep.test",
		Password: "AdminSecret12!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.RequiresMFA)
	assert.True(t, resp.RequiresMFASetup)
}

func TestLogin_UnknownVariant_NotFound(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/staff", handlers.LoginRequest{
		Email:    "someone@grandhotel.test",
		Password: "whatever1!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, typ models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/hotel", handlers.LoginRequest{
		Email:    "manager@grandhotel.test",
		Password: "wrong-password",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_LockedAccount_Returns423(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, typ models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/hotel", handlers.LoginRequest{
		Email:    "manager@grandhotel.test",
		Password: "CorrectHorse9!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 423, "account_locked")
}

func TestLogin_RateLimited_Returns429(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, typ models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrRateLimitExceeded
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/hotel", handlers.LoginRequest{
		Email:    "manager@grandhotel.test",
		Password: "CorrectHorse9!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLogin_MissingEmail_BadRequest(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, auth.CookieConfig{})
	req := handlers.NewTestRequest(t, "POST", "/login/hotel", handlers.LoginRequest{
		Password: "CorrectHorse9!",
	})

	w := httptest.NewRecorder()
	loginRouter(handler).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogout_ClearsCookie(t *testing.T) {
	mockAuth := &handlers.MockAuthService{}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/logout", nil)
	req.Header.Set("Authorization", "Bearer opaque-token-123")
	req = handlers.WithPrincipal(req, &models.Principal{ID: "identity-1", Type: models.HotelManager, MFAVerified: true})

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 200, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMe_ReturnsIdentityWithoutSecrets(t *testing.T) {
	lastLogin := time.Now().Add(-time.Hour)
	mockAuth := &handlers.MockAuthService{
		MeFunc: func(ctx context.Context, principal *models.Principal) (*models.Identity, error) {
			return &models.Identity{
				ID:           principal.ID,
				Type:         principal.Type,
				Email:        "manager@grandhotel.test",
				PasswordHash: "$2a$12$should-never-appear",
				MFAEnabled:   true,
				LastLogin:    &lastLogin,
			}, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "GET", "/me", nil)
	req = handlers.WithPrincipal(req, &models.Principal{ID: "identity-1", Type: models.HotelManager, MFAVerified: true})

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp handlers.IdentityResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "identity-1", resp.ID)
	assert.Equal(t, "manager@grandhotel.test", resp.Email)
	assert.NotContains(t, w.Body.String(), "should-never-appear")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestForgotPassword_GenericResponse(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ForgotPasswordFunc: func(ctx context.Context, typ models.IdentityType, email string, meta services.RequestMeta) error {
			// The service already returns nil for unknown emails
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/forgot-password", handlers.ForgotPasswordRequest{
		Email: "anyone@grandhotel.test",
	})
	w := httptest.NewRecorder()
	handler.ForgotPassword(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Contains(t, resp["message"], "If the email is registered")
}

func TestResetPassword_InvalidToken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
			return models.ErrUnauthorized
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/reset-password", handlers.ResetPasswordRequest{
		Token:       "bad-token",
		NewPassword: "BrandNewSecret42!",
	})
	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestSetupPassword_Success(t *testing.T) {
	var gotToken string
	mockAuth := &handlers.MockAuthService{
		SetupPasswordFunc: func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
			gotToken = token
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/setup-password", handlers.ResetPasswordRequest{
		Token:       "setup-token",
		NewPassword: "FirstSecret42!",
	})
	w := httptest.NewRecorder()
	handler.SetupPassword(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "setup-token", gotToken)
}

func TestProvisionManager_Created(t *testing.T) {
	var gotEmail string
	var gotActor *models.Principal
	mockAuth := &handlers.MockAuthService{
		ProvisionFunc: func(ctx context.Context, actor *models.Principal, email string, meta services.RequestMeta) (*models.Identity, error) {
			gotActor = actor
			gotEmail = email
			return &models.Identity{
				ID:    "manager-1",
				Type:  models.HotelManager,
				Email: "newhire@grandhotel.test",
			}, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/hotel-managers", handlers.ProvisionManagerRequest{
		Email: "newhire@grandhotel.test",
	})
	req = handlers.WithPrincipal(req, &models.Principal{ID: "admin-1", Type: models.Administrator, MFAVerified: true})

	w := httptest.NewRecorder()
	handler.ProvisionManager(w, req)

	var resp handlers.IdentityResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "manager-1", resp.ID)
	assert.Equal(t, "newhire@grandhotel.test", gotEmail)
	assert.Equal(t, "admin-1", gotActor.ID)
}

func TestProvisionManager_DuplicateEmail_Conflict(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ProvisionFunc: func(ctx context.Context, actor *models.Principal, email string, meta services.RequestMeta) (*models.Identity, error) {
			return nil, models.ErrConflict
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/hotel-managers", handlers.ProvisionManagerRequest{
		Email: "existing@grandhotel.test",
	})
	req = handlers.WithPrincipal(req, &models.Principal{ID: "admin-1", Type: models.Administrator, MFAVerified: true})

	w := httptest.NewRecorder()
	handler.ProvisionManager(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestProvisionManager_InvalidEmail_BadRequest(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, auth.CookieConfig{})

	req := handlers.NewTestRequest(t, "POST", "/hotel-managers", handlers.ProvisionManagerRequest{
		Email: "not-an-email",
	})
	req = handlers.WithPrincipal(req, &models.Principal{ID: "admin-1", Type: models.Administrator, MFAVerified: true})

	w := httptest.NewRecorder()
	handler.ProvisionManager(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}
