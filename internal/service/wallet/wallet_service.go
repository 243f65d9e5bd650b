package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/repository"
)

const (
	DefaultOpeningBalance = 50000
	RecentTransactions    = 10
)

type WalletUseCase interface {
	EnsureWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error)
	FindWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error)
	Debit(ctx context.Context, walletID, amount int64, description string) (int64, error)
	Credit(ctx context.Context, walletID, amount int64, description string, kind domain.TransactionKind) (int64, error)
	GetWallet(ctx context.Context, email string) (*domain.WalletView, error)
	TopUp(ctx context.Context, email string, amount int64) (*domain.WalletView, error)
}

// WalletService keeps balance and ledger in step: every balance change appends exactly one
// transaction in the same database transaction.
type WalletService struct {
	wallets        repository.WalletRepository
	passengers     repository.PassengerRepository
	tx             repository.TxManager
	openingBalance int64
}

type WalletServiceOption func(*WalletService)

func WithOpeningBalance(balance int64) WalletServiceOption {
	return func(s *WalletService) {
		if balance > 0 {
			s.openingBalance = balance
		}
	}
}

func NewWalletService(wallets repository.WalletRepository, passengers repository.PassengerRepository, tx repository.TxManager, opts ...WalletServiceOption) *WalletService {
	s := &WalletService{
		wallets:        wallets,
		passengers:     passengers,
		tx:             tx,
		openingBalance: DefaultOpeningBalance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WalletService) OpeningBalance() int64 {
	return s.openingBalance
}

func (s *WalletService) EnsureWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error) {
	return s.wallets.CreateIfMissing(ctx, passengerID, s.openingBalance)
}

func (s *WalletService) FindWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error) {
	w, err := s.wallets.GetByPassenger(ctx, passengerID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return nil, nil
	}
	return w, err
}

// Debit fails with *domain.InsufficientFundsError and leaves no trace when the balance is short.
func (s *WalletService) Debit(ctx context.Context, walletID, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ValidationError("debit amount must be positive")
	}

	var balance int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		balance, err = s.wallets.Debit(ctx, walletID, amount)
		if err != nil {
			return err
		}
		return s.wallets.AppendTransaction(ctx, &domain.Transaction{
			WalletID:    walletID,
			Amount:      -amount,
			Kind:        domain.TransactionDebit,
			Description: description,
		})
	})
	return balance, err
}

func (s *WalletService) Credit(ctx context.Context, walletID, amount int64, description string, kind domain.TransactionKind) (int64, error) {
	if amount <= 0 {
		return 0, domain.ValidationError("credit amount must be positive")
	}
	if kind != domain.TransactionCredit && kind != domain.TransactionRefund {
		return 0, domain.ValidationError("unsupported credit kind %q", kind)
	}

	var balance int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		balance, err = s.wallets.Credit(ctx, walletID, amount)
		if err != nil {
			return err
		}
		return s.wallets.AppendTransaction(ctx, &domain.Transaction{
			WalletID:    walletID,
			Amount:      amount,
			Kind:        kind,
			Description: description,
		})
	})
	return balance, err
}

// GetWallet never fails for an unknown email: it reports the opening balance and no history.
func (s *WalletService) GetWallet(ctx context.Context, email string) (*domain.WalletView, error) {
	if email == "" {
		return nil, domain.ValidationError("email is required")
	}

	p, err := s.passengers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrPassengerNotFound) {
			return &domain.WalletView{Email: email, Balance: s.openingBalance, Transactions: []domain.Transaction{}}, nil
		}
		return nil, err
	}

	w, err := s.EnsureWallet(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return s.view(ctx, email, w)
}

func (s *WalletService) TopUp(ctx context.Context, email string, amount int64) (*domain.WalletView, error) {
	if email == "" {
		return nil, domain.ValidationError("email is required")
	}
	if amount <= 0 {
		return nil, domain.ValidationError("amount must be positive")
	}

	var w *domain.Wallet
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.passengers.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		w, err = s.EnsureWallet(ctx, p.ID)
		if err != nil {
			return err
		}
		w.Balance, err = s.Credit(ctx, w.ID, amount, "Added to wallet", domain.TransactionCredit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, email, w)
}

func (s *WalletService) view(ctx context.Context, email string, w *domain.Wallet) (*domain.WalletView, error) {
	txs, err := s.wallets.ListTransactions(ctx, w.ID, RecentTransactions)
	if err != nil {
		return nil, err
	}
	return &domain.WalletView{WalletID: w.ID, Email: email, Balance: w.Balance, Transactions: txs}, nil
}

var _ WalletUseCase = (*WalletService)(nil)
