package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Runner executes independent reads. Implementations decide whether they run
// concurrently.
type Runner interface {
	Run(ctx context.Context, fns ...func(ctx context.Context) error) error
}

// PoolRunner fans fns out with errgroup. A pinned request connection cannot
// serve overlapping queries, so each fn gets its own pooled connection with the
// caller's tenant search_path, or the default one when ctx has no tenant.
// Inside a transaction it degrades to SerialRunner.
type PoolRunner struct {
	pool  *pgxpool.Pool
	limit int
}

func NewRunner(pool *pgxpool.Pool, limit int) *PoolRunner {
	return &PoolRunner{pool: pool, limit: limit}
}

func (r *PoolRunner) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil || r.pool == nil {
		return SerialRunner{}.Run(ctx, fns...)
	}
	tenantID := TenantFromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			conn, err := r.pool.Acquire(gctx)
			if err != nil {
				return fmt.Errorf("acquire connection: %w", err)
			}
			defer releaseConn(conn)

			if err := setSearchPath(gctx, conn, tenantID); err != nil {
				return fmt.Errorf("set search_path: %w", err)
			}
			return fn(context.WithValue(gctx, DBConnKey, conn))
		})
	}
	return g.Wait()
}

// SerialRunner runs fns in order on the caller's context, stopping at the
// first error.
type SerialRunner struct{}

func (SerialRunner) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
