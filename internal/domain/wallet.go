package domain

import "time"

type TransactionKind string

const (
	TransactionDebit  TransactionKind = "DEBIT"
	TransactionCredit TransactionKind = "CREDIT"
	TransactionRefund TransactionKind = "REFUND"
)

type Wallet struct {
	ID          int64
	PassengerID int64
	Balance     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Transaction struct {
	ID          int64
	WalletID    int64
	Amount      int64
	Kind        TransactionKind
	Description string
	CreatedAt   time.Time
}

// WalletView is what callers see: the balance and the most recent ledger entries, newest first.
type WalletView struct {
	WalletID     int64
	Email        string
	Balance      int64
	Transactions []Transaction
}
