package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PassengerRepository interface {
	Upsert(ctx context.Context, p *domain.Passenger) error
	GetByEmail(ctx context.Context, email string) (*domain.Passenger, error)
	GetByID(ctx context.Context, id int64) (*domain.Passenger, error)
}

type PGPassengerRepository struct {
	db *pgxpool.Pool
}

func NewPassengerRepository(db *pgxpool.Pool) PassengerRepository {
	return &PGPassengerRepository{db: db}
}

// Upsert finds or creates the passenger by email, refreshing the name on every call.
func (r *PGPassengerRepository) Upsert(ctx context.Context, p *domain.Passenger) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO passengers (first_name, last_name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING id, created_at`, p.FirstName, p.LastName, p.Email).
		Scan(&p.ID, &p.CreatedAt)
}

func scanPassenger(row pgx.Row) (*domain.Passenger, error) {
	var p domain.Passenger
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPassengerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGPassengerRepository) GetByEmail(ctx context.Context, email string) (*domain.Passenger, error) {
	return scanPassenger(conn(ctx, r.db).QueryRow(ctx, `SELECT id, first_name, last_name, email, created_at FROM passengers WHERE email=$1`, email))
}

func (r *PGPassengerRepository) GetByID(ctx context.Context, id int64) (*domain.Passenger, error) {
	return scanPassenger(conn(ctx, r.db).QueryRow(ctx, `SELECT id, first_name, last_name, email, created_at FROM passengers WHERE id=$1`, id))
}

var _ PassengerRepository = (*PGPassengerRepository)(nil)
