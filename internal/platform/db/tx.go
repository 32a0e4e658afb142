package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoConnection is returned by WithTx when neither a tenant connection nor a
// pool is available to start a transaction on.
var ErrNoConnection = errors.New("no database connection in context")

// TxFromContext returns the transaction started by WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the tenant connection stored in ctx and
// returns a derived context that carries it.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, ErrNoConnection
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// Transactor runs fn so that every repository call made with the context it
// receives shares one transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PGTransactor is the pgx implementation of Transactor. It prefers the
// request's tenant connection and falls back to the pool.
type PGTransactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *PGTransactor {
	return &PGTransactor{pool: pool}
}

// beginOnPool starts a transaction on a pooled connection. SET LOCAL scopes
// the tenant search_path to the transaction, so the connection goes back to
// the pool unchanged.
func (t *PGTransactor) beginOnPool(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, localSearchPathSQL(TenantFromContext(ctx))); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set search_path: %w", err)
	}
	return tx, nil
}

// localSearchPathSQL is searchPathSQL for the current transaction only.
func localSearchPathSQL(tenantID string) string {
	if tenantID == "" {
		return "SET LOCAL search_path TO DEFAULT"
	}
	return fmt.Sprintf("SET LOCAL search_path TO %s, shared, public", SchemaFor(tenantID))
}

func (t *PGTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var (
		tx  pgx.Tx
		err error
	)
	if ConnFromContext(ctx) != nil {
		ctx, tx, err = WithTx(ctx)
	} else if t.pool != nil {
		tx, err = t.beginOnPool(ctx)
		if err == nil {
			ctx = context.WithValue(ctx, DBTxKey, tx)
		}
	} else {
		err = ErrNoConnection
	}
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
