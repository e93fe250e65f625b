package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/innkeephq/innkeep/internal/models"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// AuditServiceInterface is the read side of the audit trail.
type AuditServiceInterface interface {
	ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error)
}

// AuditHandler exposes the administrator view of a manager's security log.
type AuditHandler struct {
	service AuditServiceInterface
}

func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// SecurityLogEntryResponse is one audit row as shown to an administrator.
type SecurityLogEntryResponse struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ListForManager handles GET /hotel-managers/{id}/security-log
func (h *AuditHandler) ListForManager(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteBadRequest(w, "invalid hotel manager id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.ListForIdentity(r.Context(), models.HotelManager, id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]SecurityLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, SecurityLogEntryResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Action:    e.Action,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Details:   e.Details,
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
