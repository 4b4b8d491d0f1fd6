package services

import (
	"context"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/repositories"
)

// DB is the slice of *pgxpool.Pool the services need. Keeping it an
// interface lets tests drive the transactional paths with a mock pool.
type DB interface {
	repositories.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}
