package interfaces

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is implemented by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

// TxFn runs inside a transaction; repositories called with its ctx join the transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs a function atomically.
//
//go:generate mockery --name TransactionManager --output ./mocks --outpkg mocks --case=underscore
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
