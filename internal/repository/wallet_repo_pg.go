package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository interface {
	GetByPassenger(ctx context.Context, passengerID int64) (*domain.Wallet, error)
	CreateIfMissing(ctx context.Context, passengerID int64, openingBalance int64) (*domain.Wallet, error)
	Debit(ctx context.Context, walletID int64, amount int64) (int64, error)
	Credit(ctx context.Context, walletID int64, amount int64) (int64, error)
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactions(ctx context.Context, walletID int64, limit int) ([]domain.Transaction, error)
}

type PGWalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) WalletRepository {
	return &PGWalletRepository{db: db}
}

const walletColumns = `id, passenger_id, balance, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(&w.ID, &w.PassengerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *PGWalletRepository) GetByPassenger(ctx context.Context, passengerID int64) (*domain.Wallet, error) {
	return scanWallet(conn(ctx, r.db).QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE passenger_id=$1`, passengerID))
}

// CreateIfMissing relies on the unique passenger_id so concurrent first touches converge on one wallet.
func (r *PGWalletRepository) CreateIfMissing(ctx context.Context, passengerID int64, openingBalance int64) (*domain.Wallet, error) {
	if _, err := conn(ctx, r.db).Exec(ctx, `INSERT INTO wallets (passenger_id, balance) VALUES ($1, $2) ON CONFLICT (passenger_id) DO NOTHING`, passengerID, openingBalance); err != nil {
		return nil, err
	}
	return r.GetByPassenger(ctx, passengerID)
}

// Debit decrements only when the balance covers the amount.
func (r *PGWalletRepository) Debit(ctx context.Context, walletID int64, amount int64) (int64, error) {
	var balance int64
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`, walletID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	if err := conn(ctx, r.db).QueryRow(ctx, `SELECT balance FROM wallets WHERE id=$1`, walletID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrWalletNotFound
		}
		return 0, err
	}
	return 0, &domain.InsufficientFundsError{Required: amount, Available: balance}
}

func (r *PGWalletRepository) Credit(ctx context.Context, walletID int64, amount int64) (int64, error) {
	var balance int64
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1 RETURNING balance`, walletID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrWalletNotFound
	}
	return balance, err
}

func (r *PGWalletRepository) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO wallet_transactions (wallet_id, amount, kind, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, t.WalletID, t.Amount, t.Kind, t.Description).
		Scan(&t.ID, &t.CreatedAt)
}

func (r *PGWalletRepository) ListTransactions(ctx context.Context, walletID int64, limit int) ([]domain.Transaction, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT id, wallet_id, amount, kind, description, created_at FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

var _ WalletRepository = (*PGWalletRepository)(nil)
