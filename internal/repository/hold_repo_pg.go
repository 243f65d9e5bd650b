package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HoldRepository interface {
	Create(ctx context.Context, hold *domain.Hold) error
	HasLive(ctx context.Context, seatID int64, now time.Time) (bool, error)
	DeactivateBySeat(ctx context.Context, seatID int64) (int64, error)
	DeactivateExpired(ctx context.Context, seatID int64, now time.Time) (int64, error)
	ExpireForFlight(ctx context.Context, flightID int64, now time.Time) (int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
}

type PGHoldRepository struct {
	db *pgxpool.Pool
}

func NewHoldRepository(db *pgxpool.Pool) HoldRepository {
	return &PGHoldRepository{db: db}
}

func (r *PGHoldRepository) Create(ctx context.Context, hold *domain.Hold) error {
	hold.Active = true
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO holds (seat_id, expires_at, active)
		VALUES ($1, $2, true)
		RETURNING id, created_at`, hold.SeatID, hold.ExpiresAt).
		Scan(&hold.ID, &hold.CreatedAt)
	if isUniqueViolation(err, "holds_one_active_per_seat") {
		return domain.ErrSeatUnavailable
	}
	return err
}

func (r *PGHoldRepository) HasLive(ctx context.Context, seatID int64, now time.Time) (bool, error) {
	var live bool
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM holds WHERE seat_id = $1 AND active AND expires_at > $2)`, seatID, now).Scan(&live)
	return live, err
}

func (r *PGHoldRepository) DeactivateBySeat(ctx context.Context, seatID int64) (int64, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE holds SET active = false WHERE seat_id = $1 AND active`, seatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *PGHoldRepository) DeactivateExpired(ctx context.Context, seatID int64, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE holds SET active = false WHERE seat_id = $1 AND active AND expires_at <= $2`, seatID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// ExpireForFlight deactivates the flight's lapsed holds and frees the seats left without a live hold,
// in one statement so a reader never sees one half of the pair.
func (r *PGHoldRepository) ExpireForFlight(ctx context.Context, flightID int64, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `WITH expired AS (
			UPDATE holds h SET active = false
			FROM seats s
			WHERE h.seat_id = s.id AND s.flight_id = $1 AND h.active AND h.expires_at <= $2
			RETURNING h.seat_id
		)
		UPDATE seats SET status = $3, updated_at = now()
		WHERE id IN (SELECT seat_id FROM expired)
		  AND status = $4
		  AND NOT EXISTS (SELECT 1 FROM holds l WHERE l.seat_id = seats.id AND l.active AND l.expires_at > $2)`,
		flightID, now, domain.SeatStatusFree, domain.SeatStatusHeld)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *PGHoldRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT id, seat_id, expires_at, active, created_at FROM holds
		WHERE active AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		var h domain.Hold
		if err := rows.Scan(&h.ID, &h.SeatID, &h.ExpiresAt, &h.Active, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

var _ HoldRepository = (*PGHoldRepository)(nil)
