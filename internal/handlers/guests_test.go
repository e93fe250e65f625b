package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/innkeephq/innkeep/internal/handlers"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/services"
	"github.com/stretchr/testify/assert"
)

func guestRouter(h *handlers.GuestHandler, principal *models.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, handlers.WithPrincipal(req, principal))
		})
	})
	r.Post("/guests", h.Create)
	r.Get("/guests", h.List)
	r.Get("/guests/{id}", h.Get)
	r.Put("/guests/{id}", h.Update)
	r.Delete("/guests/{id}", h.Delete)
	return r
}

func TestGuestCreate_Success(t *testing.T) {
	mockGuests := &handlers.MockGuestService{
		CreateFunc: func(ctx context.Context, actor models.Principal, in *services.GuestInput) (any, error) {
			assert.Equal(t, "identity-1", actor.ID)
			assert.Equal(t, "Ada Lovelace", in.FullName)
			return map[string]any{"id": "guest-1", "full_name": in.FullName}, nil
		},
	}
	handler := handlers.NewGuestHandler(mockGuests)

	req := handlers.NewTestRequest(t, "POST", "/guests", handlers.GuestRequest{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		CheckIn:  "2026-09-10",
	})
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "guest-1", resp["id"])
}

func TestGuestCreate_MissingName(t *testing.T) {
	handler := handlers.NewGuestHandler(&handlers.MockGuestService{})

	req := handlers.NewTestRequest(t, "POST", "/guests", handlers.GuestRequest{Email: "ada@example.com"})
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestGuestCreate_InjectionRejected(t *testing.T) {
	mockGuests := &handlers.MockGuestService{
		CreateFunc: func(ctx context.Context, actor models.Principal, in *services.GuestInput) (any, error) {
			return nil, models.ErrValidation
		},
	}
	handler := handlers.NewGuestHandler(mockGuests)

	req := handlers.NewTestRequest(t, "POST", "/guests", handlers.GuestRequest{
		FullName: "Robert'; DROP TABLE guests;--",
	})
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestGuestGet_NotFound(t *testing.T) {
	handler := handlers.NewGuestHandler(&handlers.MockGuestService{})

	req := handlers.NewTestRequest(t, "GET", "/guests/missing", nil)
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestGuestList_PassesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	mockGuests := &handlers.MockGuestService{
		ListFunc: func(ctx context.Context, actor models.Principal, limit, offset int) (any, error) {
			gotLimit, gotOffset = limit, offset
			return []any{}, nil
		},
	}
	handler := handlers.NewGuestHandler(mockGuests)

	req := handlers.NewTestRequest(t, "GET", "/guests?limit=25&offset=50", nil)
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 25, gotLimit)
	assert.Equal(t, 50, gotOffset)
}

func TestGuestDelete_NoContent(t *testing.T) {
	mockGuests := &handlers.MockGuestService{
		DeleteFunc: func(ctx context.Context, actor models.Principal, guestID string) error {
			assert.Equal(t, "guest-1", guestID)
			return nil
		},
	}
	handler := handlers.NewGuestHandler(mockGuests)

	req := handlers.NewTestRequest(t, "DELETE", "/guests/guest-1", nil)
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGuestUpdate_RateLimited(t *testing.T) {
	mockGuests := &handlers.MockGuestService{
		UpdateFunc: func(ctx context.Context, actor models.Principal, guestID string, in *services.GuestInput) (any, error) {
			return nil, models.ErrRateLimitExceeded
		},
	}
	handler := handlers.NewGuestHandler(mockGuests)

	req := handlers.NewTestRequest(t, "PUT", "/guests/guest-1", handlers.GuestRequest{FullName: "Ada Lovelace"})
	w := httptest.NewRecorder()
	guestRouter(handler, managerPrincipal()).ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}
