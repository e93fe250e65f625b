package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/models"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("innkeep"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Migrations are embedded in the database package; goose needs a
	// stdlib connection to apply them.
	sqlDB := stdlib.OpenDBFromPool(pool)
	err = database.RunMigrations(sqlDB)
	sqlDB.Close()
	if err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, quiet),
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"guests",
		"security_log",
		"sessions",
		"administrators",
		"hotel_managers",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedIdentity inserts an identity of the given variant with a hashed
// password. A nil password leaves password_hash NULL, matching an
// administrator-provisioned account awaiting first-time setup.
func SeedIdentity(ctx context.Context, pool *pgxpool.Pool, t models.IdentityType, email string, password *string) (*models.Identity, error) {
	table := "hotel_managers"
	if t == models.Administrator {
		table = "administrators"
	}

	var passwordHash *string
	if password != nil {
		hashed, err := pkgauth.HashPassword(*password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = &hashed
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, COALESCE(password_hash, ''), mfa_enabled, created_at, updated_at
	`, table)

	identity := &models.Identity{Type: t}
	err := pool.QueryRow(ctx, query, uuid.New().String(), email, passwordHash).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.MFAEnabled,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert identity: %w", err)
	}

	return identity, nil
}

// SeedGuest inserts a guest record owned by the given hotel manager
func SeedGuest(ctx context.Context, pool *pgxpool.Pool, managerID, fullName string) (string, error) {
	query := `
		INSERT INTO guests (id, hotel_manager_id, full_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id string
	if err := pool.QueryRow(ctx, query, uuid.New().String(), managerID, fullName).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert guest: %w", err)
	}

	return id, nil
}

// CountSecurityLogEntries returns the number of audit rows recorded for an
// identity with the given action
func CountSecurityLogEntries(ctx context.Context, pool *pgxpool.Pool, identityID, action string) (int, error) {
	var count int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM security_log WHERE identity_id = $1 AND action = $2`,
		identityID, action,
	).Scan(&count)
	return count, err
}

// ActiveSessionCount returns how many active sessions an identity holds
func ActiveSessionCount(ctx context.Context, pool *pgxpool.Pool, identityID string) (int, error) {
	var count int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE identity_id = $1 AND is_active = TRUE`,
		identityID,
	).Scan(&count)
	return count, err
}
