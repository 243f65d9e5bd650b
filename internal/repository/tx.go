package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

var tracer = otel.Tracer("github.com/Domenick1991/skybook/internal/repository")

// TxManager runs fn inside one database transaction. Repositories called with the
// context handed to fn join that transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func conn(ctx context.Context, db *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// InTx reports whether ctx already carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// beginner is satisfied by *pgxpool.Pool.
type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type PGTxManager struct {
	db          beginner
	maxAttempts uint
	backoff     time.Duration
}

func NewTxManager(db *pgxpool.Pool, maxAttempts uint, backoffBase time.Duration) *PGTxManager {
	return newTxManager(db, maxAttempts, backoffBase)
}

func newTxManager(db beginner, maxAttempts uint, backoffBase time.Duration) *PGTxManager {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &PGTxManager{db: db, maxAttempts: maxAttempts, backoff: backoffBase}
}

// WithinTx retries the whole transaction on serialization failures and deadlocks.
// A nested call joins the outer transaction and is never retried on its own.
func (m *PGTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "repository.tx")
	defer span.End()

	var txErr error
	err := retry.Retry(func(attempt uint) error {
		span.SetAttributes(attribute.Int("tx.attempt", int(attempt)+1))
		txErr = m.runOnce(ctx, fn)
		if IsRetryable(txErr) && ctx.Err() == nil {
			return txErr
		}
		return nil
	}, strategy.Limit(m.maxAttempts), strategy.Backoff(backoff.BinaryExponential(m.backoff)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		return fmt.Errorf("transaction retries exhausted: %w", err)
	}
	if txErr != nil {
		span.SetStatus(codes.Error, txErr.Error())
	}
	return txErr
}

func (m *PGTxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsRetryable reports transient contention errors that are safe to retry from scratch.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != sqlStateUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

var _ TxManager = (*PGTxManager)(nil)
