package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, t models.IdentityType, email, password string, meta services.RequestMeta) (*services.LoginResult, error)
	Logout(ctx context.Context, token string, principal *models.Principal, meta services.RequestMeta) error
	Me(ctx context.Context, principal *models.Principal) (*models.Identity, error)
	ForgotPassword(ctx context.Context, t models.IdentityType, email string, meta services.RequestMeta) error
	ResetPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	SetupPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ProvisionHotelManager(ctx context.Context, actor *models.Principal, email string, meta services.RequestMeta) (*models.Identity, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	ipConfig  *pkghttp.IPConfig
	cookieCfg auth.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookieCfg auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		ipConfig:  ipConfig,
		cookieCfg: cookieCfg,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for forgot-password
type ForgotPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AccountType string `json:"account_type" validate:"omitempty,oneof=hotel_manager administrator"`
}

// ResetPasswordRequest carries a reset or setup token plus the new password
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ProvisionManagerRequest represents the request body for creating a
// hotel manager account
type ProvisionManagerRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResponse is returned from a successful credential check
type LoginResponse struct {
	SessionToken     string `json:"session_token"`
	ExpiresAt        string `json:"expires_at"`
	RequiresMFA      bool   `json:"requires_mfa,omitempty"`
	RequiresMFASetup bool   `json:"requires_mfa_setup,omitempty"`
}

// IdentityResponse is the /me payload
type IdentityResponse struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Email      string  `json:"email"`
	MFAEnabled bool    `json:"mfa_enabled"`
	LastLogin  *string `json:"last_login,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// Login handles POST /login/{hotel|admin}. The path segment picks the
// identity variant; everything downstream is shared.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	identityType, ok := loginVariant(chi.URLParam(r, "variant"))
	if !ok {
		pkghttp.WriteNotFound(w, "not found")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), identityType, req.Email, req.Password, h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, "account temporarily locked")
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteTooManyRequests(w, "too many login attempts, please try again later")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "invalid credentials")
		default:
			pkghttp.WriteInternalError(w, "internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.Session.ExpiresAt, h.cookieCfg)

	resp := LoginResponse{
		SessionToken: result.Token,
		ExpiresAt:    result.Session.ExpiresAt.UTC().Format(time.RFC3339),
		RequiresMFA:  result.MFAPending,
		// An admin who owes MFA but never enrolled must set it up before
		// anything else works
		RequiresMFASetup: result.MFAPending && !result.Identity.MFAEnabled,
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	token, _ := auth.ExtractToken(r)

	if err := h.service.Logout(r.Context(), token, principal, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	identity, err := h.service.Me(r.Context(), principal)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := IdentityResponse{
		ID:         identity.ID,
		Type:       string(identity.Type),
		Email:      identity.Email,
		MFAEnabled: identity.MFAEnabled,
		CreatedAt:  identity.CreatedAt.UTC().Format(time.RFC3339),
	}
	if identity.LastLogin != nil {
		lastLogin := identity.LastLogin.UTC().Format(time.RFC3339)
		resp.LastLogin = &lastLogin
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword handles POST /forgot-password. The response is identical
// whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identityType := models.IdentityType(req.AccountType)
	if !identityType.Valid() {
		identityType = models.HotelManager
	}

	if err := h.service.ForgotPassword(r.Context(), identityType, req.Email, h.meta(r)); err != nil {
		if errors.Is(err, models.ErrRateLimitExceeded) {
			pkghttp.WriteTooManyRequests(w, "too many requests, please try again later")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If the email is registered, a reset link has been sent.",
	})
}

// ProvisionManager handles POST /hotel-managers, the administrator path for
// creating manager accounts. The new account receives a setup email and has
// no password until setup-password completes.
func (h *AuthHandler) ProvisionManager(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	var req ProvisionManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identity, err := h.service.ProvisionHotelManager(r.Context(), principal, req.Email, h.meta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, IdentityResponse{
		ID:        identity.ID,
		Type:      string(identity.Type),
		Email:     identity.Email,
		CreatedAt: identity.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ResetPassword handles POST /reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.consumeToken(w, r, h.service.ResetPassword, "password updated")
}

// SetupPassword handles POST /setup-password for freshly provisioned accounts
func (h *AuthHandler) SetupPassword(w http.ResponseWriter, r *http.Request) {
	h.consumeToken(w, r, h.service.SetupPassword, "password set")
}

func (h *AuthHandler) consumeToken(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string, services.RequestMeta) error, okMessage string) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := fn(r.Context(), req.Token, req.NewPassword, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": okMessage})
}

func (h *AuthHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

func loginVariant(segment string) (models.IdentityType, bool) {
	switch strings.ToLower(segment) {
	case "hotel":
		return models.HotelManager, true
	case "admin":
		return models.Administrator, true
	default:
		return "", false
	}
}
