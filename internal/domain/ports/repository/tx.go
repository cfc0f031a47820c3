package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX Tx

// TransactionManager executes fn inside a database transaction, passing the
// backend-specific handle through tx. Repository methods accept a nil tx for
// the non-transactional path; the concrete type (pgx.Tx for Postgres) is an
// infra detail.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
