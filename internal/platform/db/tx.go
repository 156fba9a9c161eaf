package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var txOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx commits the work done by fn as one read-committed unit. Errors from
// fn are returned unchanged after the rollback.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	var fnErr error
	err := pgx.BeginTxFunc(ctx, pool, txOptions, func(tx pgx.Tx) error {
		fnErr = fn(tx)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("platform/db: transaction: %w", err)
	}
	return nil
}
