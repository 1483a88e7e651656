package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx embeds pgx.Tx so only the methods under test need bodies.
type fakeTx struct {
	pgx.Tx
	commitErr   error
	rollbackErr error
	committed   int
	rolledBack  int
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed++
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack++
	return f.rollbackErr
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

type outcomeLog []string

func (o *outcomeLog) RecordUnitOfWork(outcome string) { *o = append(*o, outcome) }

func newTestUnitOfWork(b TxBeginner, rec OutcomeRecorder) *PgUnitOfWork {
	return NewUnitOfWork(b, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUnitOfWork_StartCarriesTransaction(t *testing.T) {
	tx := &fakeTx{}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	ctx, err := uow.Start(context.Background())
	require.NoError(t, err)

	assert.Same(t, tx, TxFromContext(ctx))
	assert.True(t, uow.Active())
}

func TestUnitOfWork_StartFailure(t *testing.T) {
	var outcomes outcomeLog
	uow := newTestUnitOfWork(&fakeBeginner{err: errors.New("pool exhausted")}, &outcomes)

	_, err := uow.Start(context.Background())

	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "DBSessionError", appErr.Code)
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, outcomeLog{"failed"}, outcomes)
}

func TestUnitOfWork_CommitWithoutStart(t *testing.T) {
	uow := newTestUnitOfWork(&fakeBeginner{tx: &fakeTx{}}, nil)

	err := uow.Commit(context.Background())

	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "DBSessionError", appErr.Code)
}

func TestUnitOfWork_DoubleStartRejected(t *testing.T) {
	uow := newTestUnitOfWork(&fakeBeginner{tx: &fakeTx{}}, nil)

	_, err := uow.Start(context.Background())
	require.NoError(t, err)

	_, err = uow.Start(context.Background())
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestUnitOfWork_RollbackAfterCommitIsNoop(t *testing.T) {
	tx := &fakeTx{}
	var outcomes outcomeLog
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, &outcomes)

	ctx, err := uow.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Rollback(ctx))

	assert.Equal(t, 1, tx.committed)
	assert.Equal(t, 0, tx.rolledBack)
	assert.Equal(t, outcomeLog{"committed"}, outcomes)
	assert.False(t, uow.Active())
}

func TestUnitOfWork_RollbackSurvivesCancelledContext(t *testing.T) {
	tx := &fakeTx{}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	txCtx, err := uow.Start(ctx)
	require.NoError(t, err)
	cancel()

	require.NoError(t, uow.Rollback(txCtx))
	assert.Equal(t, 1, tx.rolledBack)
}

func TestUnitOfWork_CommitFailure(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	ctx, err := uow.Start(context.Background())
	require.NoError(t, err)

	err = uow.Commit(ctx)
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.False(t, uow.Active())
}

// ============================================================================
// WithTransaction fault injection
// ============================================================================

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	err := WithTransaction(context.Background(), uow, func(ctx context.Context) error {
		assert.NotNil(t, TxFromContext(ctx))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, tx.committed)
	assert.Equal(t, 0, tx.rolledBack)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)
	boom := errors.New("step failed")

	err := WithTransaction(context.Background(), uow, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tx.committed)
	assert.Equal(t, 1, tx.rolledBack)
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	assert.Panics(t, func() {
		_ = WithTransaction(context.Background(), uow, func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	assert.Equal(t, 1, tx.rolledBack)
	assert.False(t, uow.Active())
}

func TestWithTransaction_CommitFailureLeavesNoOpenTx(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("connection reset")}
	uow := newTestUnitOfWork(&fakeBeginner{tx: tx}, nil)

	err := WithTransaction(context.Background(), uow, func(ctx context.Context) error { return nil })

	assert.Error(t, err)
	assert.False(t, uow.Active())
}
