package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Seat, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Seat, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Seat, error)
	MarkHeld(ctx context.Context, id int64) (bool, error)
	MarkBooked(ctx context.Context, id int64) (bool, error)
	ClearHeld(ctx context.Context, id int64) error
	MarkFree(ctx context.Context, id int64) error
}

type PGSeatRepository struct {
	db *pgxpool.Pool
}

func NewSeatRepository(db *pgxpool.Pool) SeatRepository {
	return &PGSeatRepository{db: db}
}

const seatColumns = `id, flight_id, label, class, status, updated_at`

func scanSeat(row pgx.Row) (*domain.Seat, error) {
	var s domain.Seat
	if err := row.Scan(&s.ID, &s.FlightID, &s.Label, &s.Class, &s.Status, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGSeatRepository) GetByID(ctx context.Context, id int64) (*domain.Seat, error) {
	return scanSeat(conn(ctx, r.db).QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id=$1`, id))
}

func (r *PGSeatRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Seat, error) {
	return scanSeat(conn(ctx, r.db).QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id=$1 FOR UPDATE`, id))
}

func (r *PGSeatRepository) ListByFlight(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE flight_id=$1 ORDER BY label ASC`, flightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// MarkHeld only moves a FREE seat; false means another writer got there first.
func (r *PGSeatRepository) MarkHeld(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`, id, domain.SeatStatusHeld, domain.SeatStatusFree)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (r *PGSeatRepository) MarkBooked(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`, id, domain.SeatStatusBooked)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

// ClearHeld frees a held seat and leaves a booked one alone.
func (r *PGSeatRepository) ClearHeld(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`, id, domain.SeatStatusFree, domain.SeatStatusHeld)
	return err
}

func (r *PGSeatRepository) MarkFree(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).Exec(ctx, `UPDATE seats SET status = $2, updated_at = now() WHERE id = $1`, id, domain.SeatStatusFree)
	return err
}

var _ SeatRepository = (*PGSeatRepository)(nil)
