package database

import (
	"context"
	"errors"
	"fmt"

	"nexttale/shared/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var _ interfaces.TransactionManager = (*pgTransactionManager)(nil)

type txContextKey struct{}

// withTx stores a transaction in ctx so repositories join it.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// querier returns the transaction in ctx, or fallback.
func querier(ctx context.Context, fallback interfaces.DBTX) interfaces.DBTX {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return fallback
}

type pgTransactionManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTransactionManager creates a transaction manager over pool.
func NewPgTransactionManager(pool *pgxpool.Pool, logger *zap.Logger) interfaces.TransactionManager {
	return &pgTransactionManager{
		pool:   pool,
		logger: logger.Named("PgTxManager"),
	}
}

// ExecTx runs fn in a transaction. A nested call reuses the outer transaction.
func (tm *pgTransactionManager) ExecTx(ctx context.Context, fn interfaces.TxFn) error {
	if _, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// safe after commit
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			tm.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
