package services

import (
	"context"
	"time"

	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/securedata"
)

// GuestStore is the guest persistence surface.
type GuestStore interface {
	Create(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	GetByID(ctx context.Context, hotelManagerID, guestID string) (*models.Guest, error)
	ListByManager(ctx context.Context, hotelManagerID string, limit, offset int) ([]models.Guest, error)
	Update(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	Delete(ctx context.Context, hotelManagerID, guestID string) error
}

const (
	defaultGuestPageSize = 50
	maxGuestPageSize     = 200
)

// GuestService exposes guest records through the secure data pipeline.
// Every call is rate-limited, sanitized, and screened before touching the
// store; mutations land in the audit trail.
type GuestService struct {
	store   GuestStore
	wrapper *securedata.Wrapper
}

func NewGuestService(store GuestStore, wrapper *securedata.Wrapper) *GuestService {
	return &GuestService{store: store, wrapper: wrapper}
}

// GuestInput is the write shape accepted from handlers.
type GuestInput struct {
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Nationality string     `json:"nationality"`
	Notes       string     `json:"notes"`
	CheckIn     *time.Time `json:"check_in"`
	CheckOut    *time.Time `json:"check_out"`
}

func (in *GuestInput) params() map[string]any {
	return map[string]any{
		"full_name":   in.FullName,
		"email":       in.Email,
		"phone":       in.Phone,
		"nationality": in.Nationality,
		"notes":       in.Notes,
	}
}

// guestFromParams rebuilds the input from the sanitized parameter map so the
// stored values are the post-sanitization ones.
func guestFromParams(params map[string]any, in *GuestInput) models.Guest {
	str := func(key string) string {
		s, _ := params[key].(string)
		return s
	}
	return models.Guest{
		FullName:    str("full_name"),
		Email:       str("email"),
		Phone:       str("phone"),
		Nationality: str("nationality"),
		Notes:       str("notes"),
		CheckIn:     in.CheckIn,
		CheckOut:    in.CheckOut,
	}
}

func (s *GuestService) Create(ctx context.Context, actor models.Principal, in *GuestInput) (any, error) {
	return s.wrapper.Mutate(ctx, actor, "guest_create", in.params(), func(ctx context.Context, params map[string]any) (any, error) {
		guest := guestFromParams(params, in)
		guest.HotelManagerID = actor.ID
		return s.store.Create(ctx, &guest)
	})
}

func (s *GuestService) Get(ctx context.Context, actor models.Principal, guestID string) (any, error) {
	params := map[string]any{"guest_id": guestID}
	return s.wrapper.Read(ctx, actor, "guest_get", params, func(ctx context.Context, params map[string]any) (any, error) {
		id, _ := params["guest_id"].(string)
		return s.store.GetByID(ctx, actor.ID, id)
	})
}

func (s *GuestService) List(ctx context.Context, actor models.Principal, limit, offset int) (any, error) {
	if limit <= 0 {
		limit = defaultGuestPageSize
	}
	if limit > maxGuestPageSize {
		limit = maxGuestPageSize
	}
	if offset < 0 {
		offset = 0
	}

	params := map[string]any{"limit": limit, "offset": offset}
	return s.wrapper.Read(ctx, actor, "guest_list", params, func(ctx context.Context, params map[string]any) (any, error) {
		return s.store.ListByManager(ctx, actor.ID, limit, offset)
	})
}

func (s *GuestService) Update(ctx context.Context, actor models.Principal, guestID string, in *GuestInput) (any, error) {
	params := in.params()
	params["guest_id"] = guestID
	return s.wrapper.Mutate(ctx, actor, "guest_update", params, func(ctx context.Context, params map[string]any) (any, error) {
		guest := guestFromParams(params, in)
		guest.ID, _ = params["guest_id"].(string)
		guest.HotelManagerID = actor.ID
		return s.store.Update(ctx, &guest)
	})
}

func (s *GuestService) Delete(ctx context.Context, actor models.Principal, guestID string) error {
	params := map[string]any{"guest_id": guestID}
	_, err := s.wrapper.Mutate(ctx, actor, "guest_delete", params, func(ctx context.Context, params map[string]any) (any, error) {
		id, _ := params["guest_id"].(string)
		return nil, s.store.Delete(ctx, actor.ID, id)
	})
	return err
}
