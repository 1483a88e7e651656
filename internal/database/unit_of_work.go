package database

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner opens transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Querier returns the transaction carried by ctx, or the pool when there is none.
// Repositories must obtain every executor through here.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.Pool
}

// TxFromContext returns the ambient transaction, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// UnitOfWork groups repository writes into one transaction. Start returns a
// context carrying the transaction; pass it to every repository call.
type UnitOfWork interface {
	Start(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// OutcomeRecorder receives "committed", "rolled_back" or "failed" per unit of work.
type OutcomeRecorder interface {
	RecordUnitOfWork(outcome string)
}

// PgUnitOfWork is a single-use unit of work backed by a pgx transaction.
type PgUnitOfWork struct {
	beginner TxBeginner
	tx       pgx.Tx
	recorder OutcomeRecorder
	logger   *slog.Logger
}

func NewUnitOfWork(beginner TxBeginner, recorder OutcomeRecorder, logger *slog.Logger) *PgUnitOfWork {
	return &PgUnitOfWork{beginner: beginner, recorder: recorder, logger: logger}
}

// NewUnitOfWork creates a fresh unit of work on the pool. Each operation gets its own.
func (db *DB) NewUnitOfWork() UnitOfWork {
	return NewUnitOfWork(db.Pool, db.outcomes, db.logger)
}

func (u *PgUnitOfWork) Start(ctx context.Context) (context.Context, error) {
	if u.tx != nil {
		return ctx, models.NewServerError("DBSessionError", "Database session already started", nil)
	}
	tx, err := u.beginner.Begin(ctx)
	if err != nil {
		u.record("failed")
		return ctx, models.NewServerError("DBSessionError", "Failed to start database session", err)
	}
	u.tx = tx
	return context.WithValue(ctx, txKey{}, tx), nil
}

func (u *PgUnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return models.NewServerError("DBSessionError", "Failed to get session", nil)
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit(ctx); err != nil {
		u.record("failed")
		return models.NewServerError("DBSessionError", "Failed to commit database session", err)
	}
	u.record("committed")
	return nil
}

// Rollback is safe to call after Commit; it then does nothing.
func (u *PgUnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	// The request context may already be cancelled; the rollback must still reach the server.
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		u.record("failed")
		u.logger.Error("failed to roll back transaction", slog.Any("error", err))
		return models.NewServerError("DBSessionError", "Failed to roll back database session", err)
	}
	u.record("rolled_back")
	return nil
}

// Active reports whether a transaction is open.
func (u *PgUnitOfWork) Active() bool {
	return u.tx != nil
}

func (u *PgUnitOfWork) record(outcome string) {
	if u.recorder != nil {
		u.recorder.RecordUnitOfWork(outcome)
	}
}

// WithTransaction runs fn inside a unit of work, committing on nil and rolling
// back on error or panic.
func WithTransaction(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) (err error) {
	txCtx, err := uow.Start(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(txCtx)
			panic(p)
		}
		if err != nil {
			_ = uow.Rollback(txCtx)
		}
	}()

	if err = fn(txCtx); err != nil {
		return err
	}
	return uow.Commit(txCtx)
}
