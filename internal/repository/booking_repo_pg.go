package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	Insert(ctx context.Context, booking *domain.Booking) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	MarkCanceled(ctx context.Context, id int64, at time.Time) (bool, error)
	AttachPayment(ctx context.Context, id int64, paymentID int64) error
	List(ctx context.Context) ([]domain.BookingDetails, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, pnr, flight_id, seat_id, passenger_id, price, status, payment_id, created_at, canceled_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.PNR, &b.FlightID, &b.SeatID, &b.PassengerID, &b.Price, &b.Status, &b.PaymentID, &b.CreatedAt, &b.CanceledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Insert returns false when the PNR is already taken so the caller can draw another one
// without aborting the surrounding transaction.
func (r *PGBookingRepository) Insert(ctx context.Context, booking *domain.Booking) (bool, error) {
	booking.Status = domain.BookingStatusConfirmed
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO bookings (pnr, flight_id, seat_id, passenger_id, price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pnr) DO NOTHING
		RETURNING id, created_at`, booking.PNR, booking.FlightID, booking.SeatID, booking.PassengerID, booking.Price, booking.Status).
		Scan(&booking.ID, &booking.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if isUniqueViolation(err, "bookings_one_confirmed_per_seat") {
			return false, domain.ErrSeatUnavailable
		}
		return false, err
	}
	return true, nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return scanBooking(conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
}

func (r *PGBookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return scanBooking(conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
}

// MarkCanceled flips a confirmed booking only; false means it was already canceled.
func (r *PGBookingRepository) MarkCanceled(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE bookings SET status = $2, canceled_at = $3 WHERE id = $1 AND status = $4`,
		id, domain.BookingStatusCanceled, at, domain.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (r *PGBookingRepository) AttachPayment(ctx context.Context, id int64, paymentID int64) error {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE bookings SET payment_id = $2 WHERE id = $1`, id, paymentID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *PGBookingRepository) List(ctx context.Context) ([]domain.BookingDetails, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT b.id, b.pnr, b.flight_id, b.seat_id, b.passenger_id, b.price, b.status, b.payment_id, b.created_at, b.canceled_at,
			s.label, p.first_name || ' ' || p.last_name, p.email, f.flight_number, f.origin, f.destination, f.departure_at
		FROM bookings b
		JOIN seats s ON s.id = b.seat_id
		JOIN passengers p ON p.id = b.passenger_id
		JOIN flights f ON f.id = b.flight_id
		ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.BookingDetails, 0)
	for rows.Next() {
		var d domain.BookingDetails
		if err := rows.Scan(&d.ID, &d.PNR, &d.FlightID, &d.SeatID, &d.PassengerID, &d.Price, &d.Status, &d.PaymentID, &d.CreatedAt, &d.CanceledAt,
			&d.SeatLabel, &d.PassengerName, &d.PassengerEmail, &d.FlightNumber, &d.Origin, &d.Destination, &d.DepartureAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, d)
	}
	return bookings, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
