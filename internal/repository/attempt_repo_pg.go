package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttemptRepository interface {
	Insert(ctx context.Context, attempt *domain.BookingAttempt) error
	CountSince(ctx context.Context, flightID int64, userID string, since time.Time) (int, error)
	CountBefore(ctx context.Context, flightID int64, userID string, before time.Time) (int, error)
}

type PGAttemptRepository struct {
	db *pgxpool.Pool
}

func NewAttemptRepository(db *pgxpool.Pool) AttemptRepository {
	return &PGAttemptRepository{db: db}
}

func (r *PGAttemptRepository) Insert(ctx context.Context, a *domain.BookingAttempt) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO booking_attempts (flight_id, user_id, attempted_at) VALUES ($1, $2, $3) RETURNING id`,
		a.FlightID, a.UserID, a.AttemptedAt).Scan(&a.ID)
}

func (r *PGAttemptRepository) CountSince(ctx context.Context, flightID int64, userID string, since time.Time) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT count(*) FROM booking_attempts WHERE flight_id = $1 AND user_id = $2 AND attempted_at >= $3`, flightID, userID, since).Scan(&n)
	return n, err
}

func (r *PGAttemptRepository) CountBefore(ctx context.Context, flightID int64, userID string, before time.Time) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT count(*) FROM booking_attempts WHERE flight_id = $1 AND user_id = $2 AND attempted_at < $3`, flightID, userID, before).Scan(&n)
	return n, err
}

var _ AttemptRepository = (*PGAttemptRepository)(nil)
