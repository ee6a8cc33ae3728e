package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry.
type EntryKind string

// Possible ledger entry kinds
const (
	EntryKindPurchase   EntryKind = "PURCHASE"
	EntryKindUsage      EntryKind = "USAGE"
	EntryKindRenewal    EntryKind = "RENEWAL"
	EntryKindAdjustment EntryKind = "ADJUSTMENT"
	EntryKindRefund     EntryKind = "REFUND"
)

// Common validation errors for ledger entries
var (
	ErrEmptyEntryOwner   = errors.New("ledger entry owner cannot be empty")
	ErrInvalidEntryKind  = errors.New("invalid ledger entry kind")
	ErrNegativeReleased  = errors.New("ledger entry released amount cannot be negative")
	ErrEmptyEntryEffect  = errors.New("ledger entry must change the balance or release a reservation")
	ErrEmptyAccountOwner = errors.New("credit account owner cannot be empty")
)

// CreditAccount holds a user's spendable and held credits.
//
// Balance is the number of credits the user owns. Reserved is the portion
// of Balance held against in-flight jobs. Neither may drop below zero, and a
// reservation is only accepted while Available covers it.
type CreditAccount struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   int64     `json:"balance"`
	Reserved  int64     `json:"reserved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCreditAccount creates an empty account for the given owner.
func NewCreditAccount(ownerID uuid.UUID) (*CreditAccount, error) {
	if ownerID == uuid.Nil {
		return nil, ErrEmptyAccountOwner
	}

	now := time.Now().UTC()
	return &CreditAccount{
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Available returns the credits that can still be reserved.
func (a *CreditAccount) Available() int64 {
	return a.Balance - a.Reserved
}

// CanReserve reports whether a reservation of amount would be accepted.
func (a *CreditAccount) CanReserve(amount int64) bool {
	return amount > 0 && a.Available() >= amount
}

// LedgerEntry is an immutable record of a change to a credit account.
//
// Amount is the signed effect on Balance. Released is the number of credits
// this entry returned from Reserved to the available pool; entries that close
// out a reservation without touching Balance carry Amount 0 and a positive
// Released. The sum of Amount over an owner's entries always equals Balance.
type LedgerEntry struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Amount      int64          `json:"amount"`
	Released    int64          `json:"released"`
	Kind        EntryKind      `json:"kind"`
	Feature     string         `json:"feature,omitempty"`
	Description string         `json:"description"`
	Reference   string         `json:"reference,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewLedgerEntry creates a validated ledger entry.
func NewLedgerEntry(
	ownerID uuid.UUID,
	kind EntryKind,
	amount int64,
	released int64,
	description string,
) (*LedgerEntry, error) {
	entry := &LedgerEntry{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Amount:      amount,
		Released:    released,
		Kind:        kind,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the LedgerEntry has valid data.
func (e *LedgerEntry) Validate() error {
	if e.OwnerID == uuid.Nil {
		return ErrEmptyEntryOwner
	}

	if !IsValidEntryKind(e.Kind) {
		return ErrInvalidEntryKind
	}

	if e.Released < 0 {
		return ErrNegativeReleased
	}

	if e.Amount == 0 && e.Released == 0 {
		return ErrEmptyEntryEffect
	}

	return nil
}

// IsValidEntryKind checks if the given kind is a known ledger entry kind.
func IsValidEntryKind(kind EntryKind) bool {
	switch kind {
	case EntryKindPurchase, EntryKindUsage, EntryKindRenewal,
		EntryKindAdjustment, EntryKindRefund:
		return true
	default:
		return false
	}
}
