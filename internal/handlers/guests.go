package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// GuestServiceInterface defines the interface for guest profile operations.
// Results come back already sanitized and redacted by the secure data layer.
type GuestServiceInterface interface {
	Create(ctx context.Context, actor models.Principal, in *services.GuestInput) (any, error)
	Get(ctx context.Context, actor models.Principal, guestID string) (any, error)
	List(ctx context.Context, actor models.Principal, limit, offset int) (any, error)
	Update(ctx context.Context, actor models.Principal, guestID string, in *services.GuestInput) (any, error)
	Delete(ctx context.Context, actor models.Principal, guestID string) error
}

// GuestHandler handles guest profile CRUD for hotel managers
type GuestHandler struct {
	service GuestServiceInterface
}

func NewGuestHandler(service GuestServiceInterface) *GuestHandler {
	return &GuestHandler{service: service}
}

// GuestRequest is the write shape for guest create/update
type GuestRequest struct {
	FullName    string `json:"full_name" validate:"required,max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Nationality string `json:"nationality" validate:"omitempty,max=64"`
	Notes       string `json:"notes" validate:"omitempty,max=2048"`
	CheckIn     string `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut    string `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
}

// Create handles POST /guests
func (h *GuestHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	in, ok := decodeGuest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Create(r.Context(), *principal, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, result)
}

// Get handles GET /guests/{id}
func (h *GuestHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	result, err := h.service.Get(r.Context(), *principal, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// List handles GET /guests
func (h *GuestHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := h.service.List(r.Context(), *principal, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Update handles PUT /guests/{id}
func (h *GuestHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	in, ok := decodeGuest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Update(r.Context(), *principal, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /guests/{id}
func (h *GuestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)

	if err := h.service.Delete(r.Context(), *principal, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeGuest(w http.ResponseWriter, r *http.Request) (*services.GuestInput, bool) {
	var req GuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return nil, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return nil, false
	}

	in := &services.GuestInput{
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		Nationality: req.Nationality,
		Notes:       req.Notes,
	}
	if t, ok := parseDate(req.CheckIn); ok {
		in.CheckIn = t
	}
	if t, ok := parseDate(req.CheckOut); ok {
		in.CheckOut = t
	}
	return in, true
}

func parseDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
