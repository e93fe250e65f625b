package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SecurityLogRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityLogRepository(db *database.DB) *SecurityLogRepository {
	return &SecurityLogRepository{pool: db.Pool}
}

func (r *SecurityLogRepository) Insert(ctx context.Context, entry *models.SecurityLogEntry) error {
	entry.ID = uuid.New().String()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return err
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO security_log (id, ts, identity_id, identity_type, action, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Timestamp, entry.IdentityID, entry.IdentityType,
		entry.Action, entry.IPAddress, entry.UserAgent, details)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ListForIdentity returns the most recent entries for one identity, newest
// first.
func (r *SecurityLogRepository) ListForIdentity(ctx context.Context, t models.IdentityType, identityID string, limit int) ([]models.SecurityLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ts, identity_id, identity_type, action, ip_address, user_agent, details
		FROM security_log
		WHERE identity_id = $1 AND identity_type = $2
		ORDER BY ts DESC
		LIMIT $3
	`, identityID, t, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var entries []models.SecurityLogEntry
	for rows.Next() {
		var e models.SecurityLogEntry
		var details []byte
		err := rows.Scan(&e.ID, &e.Timestamp, &e.IdentityID, &e.IdentityType,
			&e.Action, &e.IPAddress, &e.UserAgent, &details)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
