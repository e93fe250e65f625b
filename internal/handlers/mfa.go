package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// MFAServiceInterface defines the interface for MFA business logic
type MFAServiceInterface interface {
	Setup(ctx context.Context, principal *models.Principal, meta services.RequestMeta) (*services.SetupResult, error)
	Enable(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error
	Verify(ctx context.Context, principal *models.Principal, session *models.Session, code string, meta services.RequestMeta) error
	Disable(ctx context.Context, principal *models.Principal, password string, meta services.RequestMeta) error
	Reset(ctx context.Context, actor *models.Principal, targetID string, meta services.RequestMeta) error
	Status(ctx context.Context, principal *models.Principal) (*services.MFAStatus, error)
}

// MFAHandler handles MFA enrollment and verification requests
type MFAHandler struct {
	service  MFAServiceInterface
	sessions auth.SessionValidator
	ipConfig *pkghttp.IPConfig
}

func NewMFAHandler(service MFAServiceInterface, sessions auth.SessionValidator, ipConfig *pkghttp.IPConfig) *MFAHandler {
	return &MFAHandler{
		service:  service,
		sessions: sessions,
		ipConfig: ipConfig,
	}
}

// Setup handles POST /setup-mfa: provisions a secret and returns the QR code.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	result, err := h.service.Setup(r.Context(), principal, h.meta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFASetupResponse{
		OTPAuthURL: result.OTPAuthURL,
		QRCode:     result.QRDataURL,
	})
}

// Enable handles POST /enable-mfa: confirms the pending secret with its
// first valid code and upgrades the caller's session in the same step.
func (h *MFAHandler) Enable(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	token, _ := auth.ExtractToken(r)
	session, err := h.sessions.Validate(r.Context(), token)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := h.service.Enable(r.Context(), principal, session, req.Code, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFAActionResponse{Success: true, Message: "mfa enabled"})
}

// Verify handles POST /verify-mfa: login step two, upgrading the pending
// session. The route sits behind RequireAuth with RequireMFA=false, so a
// pending session reaches it.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	token, _ := auth.ExtractToken(r)
	session, err := h.sessions.Validate(r.Context(), token)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := h.service.Verify(r.Context(), principal, session, req.Code, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFAActionResponse{Success: true, Message: "mfa verified"})
}

// Status handles GET /mfa-status
func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	status, err := h.service.Status(r.Context(), principal)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Disable handles POST /disable-mfa with password re-authentication.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), principal, req.Password, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFAActionResponse{Success: true, Message: "mfa disabled"})
}

// Reset handles POST /reset-mfa: admin-assisted recovery for a hotel
// manager who lost their authenticator.
func (h *MFAHandler) Reset(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	var req ResetMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Reset(r.Context(), principal, req.HotelManagerID, h.meta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFAActionResponse{Success: true, Message: "mfa reset"})
}

func decodeCode(w http.ResponseWriter, r *http.Request) (MFACodeRequest, bool) {
	var req MFACodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return req, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return req, false
	}
	return req, true
}

func (h *MFAHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}
