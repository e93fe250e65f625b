package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/innkeephq/innkeep/internal/models"
)

// maxDetailsBytes caps the serialized details payload so a hostile
// user-agent or parameter set cannot bloat the audit table.
const maxDetailsBytes = 2048

type SecurityLogStore interface {
	Insert(ctx context.Context, entry *models.SecurityLogEntry) error
	ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error)
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditService writes every security event twice: structured log for
// operators, database row for the tamper-evident trail. A failed database
// write is logged and swallowed so auditing never blocks the operation
// being audited.
type AuditService struct {
	store  SecurityLogStore
	logger *slog.Logger
}

func NewAuditService(store SecurityLogStore, logger *slog.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

func (s *AuditService) Record(ctx context.Context, entry models.SecurityLogEntry) {
	entry.Details = capDetails(entry.Details)

	attrs := []any{
		slog.String("action", entry.Action),
		slog.String("ip_address", entry.IPAddress),
	}
	if entry.IdentityID != nil {
		attrs = append(attrs, slog.String("identity_id", *entry.IdentityID))
	}
	if entry.IdentityType != "" {
		attrs = append(attrs, slog.String("identity_type", string(entry.IdentityType)))
	}
	if len(entry.Details) > 0 {
		attrs = append(attrs, slog.Any("details", entry.Details))
	}
	s.logger.InfoContext(ctx, "security event", attrs...)

	if err := s.store.Insert(ctx, &entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()),
		)
	}
}

// ListForIdentity returns the most recent audit entries for one identity,
// newest first. Backs the administrator audit view.
func (s *AuditService) ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error) {
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	return s.store.ListForIdentity(ctx, t, identityID, limit)
}

func capDetails(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	encoded, err := json.Marshal(details)
	if err != nil || len(encoded) <= maxDetailsBytes {
		return details
	}
	return map[string]interface{}{"truncated": true, "original_bytes": len(encoded)}
}
