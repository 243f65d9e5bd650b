package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	Search(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error)
	ListScheduled(ctx context.Context, limit int) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error)
	SetCurrentPrice(ctx context.Context, id int64, price int64) (*domain.Flight, error)
	ResetIdleSurges(ctx context.Context, recentSince, staleBefore time.Time) ([]int64, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_number, origin, destination, aircraft_code, departure_at, arrival_at, status, base_price, current_price, price_version, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Origin, &f.Destination, &f.AircraftCode, &f.DepartureAt, &f.ArrivalAt, &f.Status, &f.BasePrice, &f.CurrentPrice, &f.PriceVersion, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, err
	}
	return &f, nil
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

// Search matches scheduled flights on the route; a date narrows departures to that calendar day.
func (r *PGFlightRepository) Search(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	var from, to *time.Time
	if q.Date != nil {
		start := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, q.Date.Location())
		end := start.Add(24 * time.Hour)
		from, to = &start, &end
	}

	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE status = $1
		  AND ($2 = '' OR origin = $2)
		  AND ($3 = '' OR destination = $3)
		  AND ($4::timestamptz IS NULL OR departure_at >= $4)
		  AND ($5::timestamptz IS NULL OR departure_at < $5)
		ORDER BY departure_at, id`, domain.FlightStatusScheduled, q.Origin, q.Destination, from, to)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) ListScheduled(ctx context.Context, limit int) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+` FROM flights WHERE status = $1 ORDER BY departure_at, id LIMIT $2`, domain.FlightStatusScheduled, limit)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return scanFlight(conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
}

func (r *PGFlightRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error) {
	return scanFlight(conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, id))
}

// SetCurrentPrice is the only writer of current_price; every write bumps price_version.
func (r *PGFlightRepository) SetCurrentPrice(ctx context.Context, id int64, price int64) (*domain.Flight, error) {
	return scanFlight(conn(ctx, r.db).QueryRow(ctx, `UPDATE flights
		SET current_price = $2, price_version = price_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+flightColumns, id, price))
}

func (r *PGFlightRepository) ResetIdleSurges(ctx context.Context, recentSince, staleBefore time.Time) ([]int64, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `UPDATE flights f
		SET current_price = f.base_price, price_version = f.price_version + 1, updated_at = now()
		WHERE f.current_price IS NOT NULL
		  AND f.current_price <> f.base_price
		  AND NOT EXISTS (SELECT 1 FROM booking_attempts a WHERE a.flight_id = f.id AND a.attempted_at >= $1)
		  AND EXISTS (SELECT 1 FROM booking_attempts a WHERE a.flight_id = f.id AND a.attempted_at < $2)
		RETURNING f.id`, recentSince, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
