package repository

import (
	"context"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	List(ctx context.Context) ([]domain.Payment, error)
}

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

func (r *PGPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO payments (booking_id, amount, currency, method, status, provider, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`, p.BookingID, p.Amount, p.Currency, p.Method, p.Status, p.Provider, p.Reference).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *PGPaymentRepository) List(ctx context.Context) ([]domain.Payment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT id, booking_id, amount, currency, method, status, provider, reference, created_at FROM payments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.Provider, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
