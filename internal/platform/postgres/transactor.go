package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/inkwell-api/internal/store"
)

// Transactor implements store.Transactor with one database transaction per call.
type Transactor struct {
	db       *sql.DB
	accounts *PostgresAccountStore
	jobs     *PostgresJobStore
}

// NewTransactor creates a Transactor on db.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	return &Transactor{
		db:       db,
		accounts: NewPostgresAccountStore(db, logger),
		jobs:     NewPostgresJobStore(db, logger),
	}
}

var _ store.Transactor = (*Transactor)(nil)

// InTx implements store.Transactor.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, stores store.TxStores) error) error {
	return store.RunInTransaction(ctx, t.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.TxStores{
			Accounts: t.accounts.WithTx(tx),
			Jobs:     t.jobs.WithTx(tx),
		})
	})
}
