package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// AccountMutation describes one atomic change to a credit account.
// The deltas are applied to the account and the entries appended in the
// same transaction.
type AccountMutation struct {
	BalanceDelta  int64
	ReservedDelta int64
	Entries       []*domain.LedgerEntry
}

// MutateFn computes a mutation from the current, locked state of an account.
// Returning an error aborts the whole operation without side effects.
type MutateFn func(account *domain.CreditAccount) (*AccountMutation, error)

// AccountStore defines the interface for credit account and ledger persistence.
// Version: 1.0
type AccountStore interface {
	// Get retrieves the account of the given owner.
	// Returns ErrAccountNotFound if the owner has no account.
	Get(ctx context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error)

	// Ensure returns the owner's account, creating an empty one if needed.
	Ensure(ctx context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error)

	// Reserve atomically increments Reserved by amount if, and only if,
	// Balance - Reserved >= amount at the instant of the write.
	// Returns domain.ErrInsufficientFunds without side effects otherwise.
	Reserve(ctx context.Context, ownerID uuid.UUID, amount int64) error

	// Apply locks the owner's account, calls fn with its current state and
	// applies the returned mutation atomically. A non-empty reference is
	// recorded with the mutation; a reference that was already applied
	// returns ErrReferenceExists and fn is not called.
	// Returns ErrInvalidEntity if the mutation would make Balance or
	// Reserved negative.
	Apply(ctx context.Context, ownerID uuid.UUID, reference string, fn MutateFn) (*domain.CreditAccount, error)

	// Entries lists ledger entries of the owner, newest first.
	Entries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)

	// EntriesByReference lists the owner's entries recorded under reference,
	// oldest first.
	EntriesByReference(ctx context.Context, ownerID uuid.UUID, reference string) ([]*domain.LedgerEntry, error)

	// SumEntries returns the sum of Amount over every entry of the owner.
	SumEntries(ctx context.Context, ownerID uuid.UUID) (int64, error)
}
