package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, token_hash, identity_id, identity_type, ip_address, user_agent, mfa_verified, is_active, created_at, expires_at`

type SessionRepository struct {
	pool *pgxpool.Pool
	db   *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool, db: db}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session
	err := scanner.Scan(
		&s.ID, &s.TokenHash, &s.IdentityID, &s.IdentityType,
		&s.IPAddress, &s.UserAgent, &s.MFAVerified, &s.IsActive,
		&s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

// CreateSuperseding inserts a new active session and deactivates any other
// active sessions for the same identity in the same transaction, so at most
// one active session exists per identity at any point.
func (r *SessionRepository) CreateSuperseding(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()
	session.CreatedAt = time.Now()
	session.IsActive = true

	var created *models.Session
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE sessions SET is_active = FALSE
			WHERE identity_id = $1 AND identity_type = $2 AND is_active = TRUE
		`, session.IdentityID, session.IdentityType)
		if err != nil {
			return database.MapPostgresError(err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO sessions (id, token_hash, identity_id, identity_type, ip_address, user_agent, mfa_verified, is_active, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+sessionColumns+`
		`, session.ID, session.TokenHash, session.IdentityID, session.IdentityType,
			session.IPAddress, session.UserAgent, session.MFAVerified, session.IsActive,
			session.CreatedAt, session.ExpiresAt)

		created, err = scanSessionRow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetActiveByTokenHash returns the session only if it is active and not yet
// expired; expired-but-active rows are invisible here and left for cleanup.
func (r *SessionRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE token_hash = $1 AND is_active = TRUE AND expires_at > now()
	`, tokenHash)
	return scanSessionRow(row)
}

func (r *SessionRepository) MarkMFAVerified(ctx context.Context, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET mfa_verified = TRUE WHERE id = $1 AND is_active = TRUE
	`, sessionID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) Invalidate(ctx context.Context, tokenHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = FALSE WHERE token_hash = $1 AND is_active = TRUE
	`, tokenHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// InvalidateAllForIdentity kills every active session, used after password
// resets and MFA resets.
func (r *SessionRepository) InvalidateAllForIdentity(ctx context.Context, t models.IdentityType, identityID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = FALSE
		WHERE identity_id = $1 AND identity_type = $2 AND is_active = TRUE
	`, identityID, t)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
