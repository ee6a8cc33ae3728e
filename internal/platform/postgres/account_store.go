package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// PostgresAccountStore implements store.AccountStore. On a *sql.DB, Apply
// opens its own transaction; on a *sql.Tx it joins the caller's.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAccountStore creates a PostgresAccountStore on a connection or transaction.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

// WithTx returns a store that runs on tx.
func (s *PostgresAccountStore) WithTx(tx *sql.Tx) *PostgresAccountStore {
	return &PostgresAccountStore{db: tx, logger: s.logger}
}

const accountColumns = `owner_id, balance, reserved, created_at, updated_at`

// Get implements store.AccountStore.
func (s *PostgresAccountStore) Get(ctx context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM credit_accounts WHERE owner_id = $1`
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, MapError(err)
	}
	return acct, nil
}

// Ensure implements store.AccountStore.
func (s *PostgresAccountStore) Ensure(ctx context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error) {
	if err := ensureAccount(ctx, s.db, ownerID); err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerID)
}

// Reserve implements store.AccountStore as a single conditional UPDATE, so
// concurrent reservations serialize on the row lock and none can overdraw.
func (s *PostgresAccountStore) Reserve(ctx context.Context, ownerID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	query := `
		UPDATE credit_accounts
		SET reserved = reserved + $1, updated_at = NOW()
		WHERE owner_id = $2 AND balance - reserved >= $1
	`
	result, err := s.db.ExecContext(ctx, query, amount, ownerID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to reserve credits",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", err.Error()))
		return mapAccountError(err)
	}

	if err := CheckRowsAffected(result, "credit account"); err != nil {
		if store.IsNotFoundError(err) {
			return domain.ErrInsufficientFunds
		}
		return err
	}
	return nil
}

// Apply implements store.AccountStore. The reference claim, the account row
// lock, the balance update and the entry inserts share one transaction.
func (s *PostgresAccountStore) Apply(
	ctx context.Context,
	ownerID uuid.UUID,
	reference string,
	fn store.MutateFn,
) (*domain.CreditAccount, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	var result *domain.CreditAccount

	err := s.inTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		if err := ensureAccount(ctx, tx, ownerID); err != nil {
			return err
		}

		if reference != "" {
			claim, err := tx.ExecContext(ctx, `
				INSERT INTO ledger_references (reference, owner_id)
				VALUES ($1, $2)
				ON CONFLICT (reference) DO NOTHING
			`, reference, ownerID)
			if err != nil {
				return MapError(err)
			}
			if err := CheckRowsAffected(claim, "ledger reference"); err != nil {
				return store.ErrReferenceExists
			}
		}

		query := `SELECT ` + accountColumns + ` FROM credit_accounts WHERE owner_id = $1 FOR UPDATE`
		acct, err := scanAccount(tx.QueryRowContext(ctx, query, ownerID))
		if err != nil {
			return MapError(err)
		}

		m, err := fn(acct)
		if err != nil {
			return err
		}

		balance := acct.Balance + m.BalanceDelta
		reserved := acct.Reserved + m.ReservedDelta
		if balance < 0 || reserved < 0 {
			return fmt.Errorf("%w: balance %d reserved %d after mutation",
				store.ErrInvalidEntity, balance, reserved)
		}

		if m.BalanceDelta != 0 || m.ReservedDelta != 0 {
			row := tx.QueryRowContext(ctx, `
				UPDATE credit_accounts
				SET balance = $1, reserved = $2, updated_at = NOW()
				WHERE owner_id = $3
				RETURNING `+accountColumns,
				balance, reserved, ownerID)
			acct, err = scanAccount(row)
			if err != nil {
				return mapAccountError(err)
			}
		}

		for _, entry := range m.Entries {
			if err := insertEntry(ctx, tx, entry); err != nil {
				return err
			}
		}

		result = acct
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrReferenceExists) {
			log.Error("failed to apply account mutation",
				slog.String("owner_id", ownerID.String()),
				slog.String("reference", reference),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	return result, nil
}

const entryColumns = `id, owner_id, amount, released, kind, feature, description, reference, metadata, created_at`

// Entries implements store.AccountStore.
func (s *PostgresAccountStore) Entries(
	ctx context.Context,
	ownerID uuid.UUID,
	limit, offset int,
) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	return scanEntries(rows)
}

// EntriesByReference implements store.AccountStore.
func (s *PostgresAccountStore) EntriesByReference(
	ctx context.Context,
	ownerID uuid.UUID,
	reference string,
) ([]*domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE owner_id = $1 AND reference = $2
		ORDER BY created_at, id
	`, ownerID, reference)
	if err != nil {
		return nil, MapError(err)
	}
	return scanEntries(rows)
}

// SumEntries implements store.AccountStore.
func (s *PostgresAccountStore) SumEntries(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE owner_id = $1`,
		ownerID,
	).Scan(&sum)
	if err != nil {
		return 0, MapError(err)
	}
	return sum, nil
}

// inTx runs fn in the caller's transaction, or in a new one when the store
// sits on a plain connection.
func (s *PostgresAccountStore) inTx(ctx context.Context, fn func(ctx context.Context, tx store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

// mapAccountError reports a violation of the credit_accounts checks as
// insufficient funds.
func mapAccountError(err error) error {
	if IsCheckConstraintViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, MapError(err))
	}
	return MapError(err)
}

func ensureAccount(ctx context.Context, db store.DBTX, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyAccountOwner)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO credit_accounts (owner_id)
		VALUES ($1)
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID)
	return MapError(err)
}

func insertEntry(ctx context.Context, db store.DBTX, entry *domain.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var metadata []byte
	if len(entry.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("failed to encode entry metadata: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, owner_id, amount, released, kind, feature, description, reference, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.OwnerID, entry.Amount, entry.Released, string(entry.Kind),
		entry.Feature, entry.Description, entry.Reference, metadata, entry.CreatedAt,
	)
	return MapError(err)
}

func scanEntries(rows *sql.Rows) ([]*domain.LedgerEntry, error) {
	defer func() { _ = rows.Close() }()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry    domain.LedgerEntry
			kind     string
			metadata []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.OwnerID, &entry.Amount, &entry.Released, &kind,
			&entry.Feature, &entry.Description, &entry.Reference, &metadata, &entry.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		entry.Kind = domain.EntryKind(kind)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode entry metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.CreditAccount, error) {
	var acct domain.CreditAccount
	if err := row.Scan(&acct.OwnerID, &acct.Balance, &acct.Reserved, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	return &acct, nil
}
