package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const identityColumns = `id, email, password_hash, mfa_secret, mfa_enabled, login_attempts, locked_until, last_login, ip_whitelist, created_at, updated_at`

// IdentityRepository persists both identity variants. The variant is
// resolved to a table exactly once per call; everything else is shared.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(db *database.DB) *IdentityRepository {
	return &IdentityRepository{pool: db.Pool}
}

func tableFor(t models.IdentityType) (string, error) {
	switch t {
	case models.HotelManager:
		return "hotel_managers", nil
	case models.Administrator:
		return "administrators", nil
	default:
		return "", fmt.Errorf("unknown identity type %q", t)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIdentityRow(scanner rowScanner, t models.IdentityType) (*models.Identity, error) {
	var identity models.Identity
	var passwordHash *string

	err := scanner.Scan(
		&identity.ID, &identity.Email, &passwordHash, &identity.MFASecret,
		&identity.MFAEnabled, &identity.LoginAttempts,
		&identity.LockedUntil, &identity.LastLogin, &identity.IPWhitelist,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	identity.Type = t
	if passwordHash != nil {
		identity.PasswordHash = *passwordHash
	}

	return &identity, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, identityColumns, table)
	return scanIdentityRow(r.pool.QueryRow(ctx, query, id), t)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, t models.IdentityType, email string) (*models.Identity, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, identityColumns, table)
	return scanIdentityRow(r.pool.QueryRow(ctx, query, email), t)
}

func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	table, err := tableFor(identity.Type)
	if err != nil {
		return nil, err
	}

	identity.ID = uuid.New().String()
	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	if identity.IPWhitelist == nil {
		identity.IPWhitelist = []string{}
	}

	var passwordHash *string
	if identity.PasswordHash != "" {
		passwordHash = &identity.PasswordHash
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, mfa_secret, mfa_enabled, login_attempts, locked_until, last_login, ip_whitelist, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s
	`, table, identityColumns)

	return scanIdentityRow(r.pool.QueryRow(ctx, query,
		identity.ID, identity.Email, passwordHash, identity.MFASecret,
		identity.MFAEnabled, identity.LoginAttempts,
		identity.LockedUntil, identity.LastLogin, identity.IPWhitelist,
		identity.CreatedAt, identity.UpdatedAt,
	), identity.Type)
}

// RecordFailure bumps login_attempts and, at or past the threshold, starts a
// lockout. A single statement keeps the counter race-free under concurrent
// login attempts for the same identity.
func (r *IdentityRepository) RecordFailure(ctx context.Context, t models.IdentityType, id string, threshold int, lockout time.Duration) (*models.Identity, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET login_attempts = login_attempts + 1,
		    locked_until = CASE WHEN login_attempts + 1 >= $2 THEN now() + $3::interval ELSE locked_until END,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, table, identityColumns)

	interval := fmt.Sprintf("%f seconds", lockout.Seconds())
	return scanIdentityRow(r.pool.QueryRow(ctx, query, id, threshold, interval), t)
}

// RecordSuccess clears the failure counter and lockout and stamps last_login.
func (r *IdentityRepository) RecordSuccess(ctx context.Context, t models.IdentityType, id string) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET login_attempts = 0, locked_until = NULL, last_login = now(), updated_at = now()
		WHERE id = $1
	`, table)

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, t models.IdentityType, id, passwordHash string) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET password_hash = $2, login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`, table)

	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMFASecret stores a freshly provisioned (encrypted) secret without
// enabling MFA; the identity sits in the pending-verification state until
// the first valid code confirms it.
func (r *IdentityRepository) SetMFASecret(ctx context.Context, t models.IdentityType, id string, encryptedSecret []byte) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET mfa_secret = $2, mfa_enabled = FALSE, updated_at = now() WHERE id = $1
	`, table)

	tag, err := r.pool.Exec(ctx, query, id, encryptedSecret)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) EnableMFA(ctx context.Context, t models.IdentityType, id string) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET mfa_enabled = TRUE, updated_at = now() WHERE id = $1 AND mfa_secret IS NOT NULL
	`, table)

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearMFA wipes the secret and flag, returning the identity to the
// unconfigured state.
func (r *IdentityRepository) ClearMFA(ctx context.Context, t models.IdentityType, id string) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET mfa_secret = NULL, mfa_enabled = FALSE, updated_at = now() WHERE id = $1
	`, table)

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
