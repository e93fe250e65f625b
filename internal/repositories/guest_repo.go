package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/innkeephq/innkeep/internal/database"
	"github.com/innkeephq/innkeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const guestColumns = `id, hotel_manager_id, full_name, email, phone, nationality, notes, check_in, check_out, created_at, updated_at`

type GuestRepository struct {
	pool *pgxpool.Pool
}

func NewGuestRepository(db *database.DB) *GuestRepository {
	return &GuestRepository{pool: db.Pool}
}

func scanGuestRow(scanner rowScanner) (*models.Guest, error) {
	var g models.Guest
	err := scanner.Scan(
		&g.ID, &g.HotelManagerID, &g.FullName, &g.Email, &g.Phone,
		&g.Nationality, &g.Notes, &g.CheckIn, &g.CheckOut,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &g, nil
}

func (r *GuestRepository) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	guest.ID = uuid.New().String()
	now := time.Now()
	guest.CreatedAt = now
	guest.UpdatedAt = now

	row := r.pool.QueryRow(ctx, `
		INSERT INTO guests (id, hotel_manager_id, full_name, email, phone, nationality, notes, check_in, check_out, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+guestColumns+`
	`, guest.ID, guest.HotelManagerID, guest.FullName, guest.Email, guest.Phone,
		guest.Nationality, guest.Notes, guest.CheckIn, guest.CheckOut,
		guest.CreatedAt, guest.UpdatedAt)
	return scanGuestRow(row)
}

// GetByID scopes by owner so a manager can never read another hotel's guest.
func (r *GuestRepository) GetByID(ctx context.Context, hotelManagerID, guestID string) (*models.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+guestColumns+` FROM guests WHERE id = $1 AND hotel_manager_id = $2
	`, guestID, hotelManagerID)
	return scanGuestRow(row)
}

func (r *GuestRepository) ListByManager(ctx context.Context, hotelManagerID string, limit, offset int) ([]models.Guest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+guestColumns+` FROM guests
		WHERE hotel_manager_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, hotelManagerID, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var guests []models.Guest
	for rows.Next() {
		g, err := scanGuestRow(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}

func (r *GuestRepository) Update(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE guests
		SET full_name = $3, email = $4, phone = $5, nationality = $6, notes = $7,
		    check_in = $8, check_out = $9, updated_at = now()
		WHERE id = $1 AND hotel_manager_id = $2
		RETURNING `+guestColumns+`
	`, guest.ID, guest.HotelManagerID, guest.FullName, guest.Email, guest.Phone,
		guest.Nationality, guest.Notes, guest.CheckIn, guest.CheckOut)
	return scanGuestRow(row)
}

func (r *GuestRepository) Delete(ctx context.Context, hotelManagerID, guestID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM guests WHERE id = $1 AND hotel_manager_id = $2
	`, guestID, hotelManagerID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
