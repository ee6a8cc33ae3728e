package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// AccountStore keeps credit accounts and ledger entries in maps guarded by a
// single mutex, which makes every operation trivially atomic.
type AccountStore struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*domain.CreditAccount
	entries    map[uuid.UUID][]*domain.LedgerEntry
	references map[string]struct{}
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:   make(map[uuid.UUID]*domain.CreditAccount),
		entries:    make(map[uuid.UUID][]*domain.LedgerEntry),
		references: make(map[string]struct{}),
	}
}

var _ store.AccountStore = (*AccountStore)(nil)

// Get implements store.AccountStore.
func (s *AccountStore) Get(_ context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[ownerID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

// Ensure implements store.AccountStore.
func (s *AccountStore) Ensure(_ context.Context, ownerID uuid.UUID) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.ensureLocked(ownerID)
	if err != nil {
		return nil, err
	}
	copied := *acct
	return &copied, nil
}

// Reserve implements store.AccountStore.
func (s *AccountStore) Reserve(_ context.Context, ownerID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[ownerID]
	if !ok || !acct.CanReserve(amount) {
		return domain.ErrInsufficientFunds
	}

	acct.Reserved += amount
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

// Apply implements store.AccountStore.
func (s *AccountStore) Apply(
	_ context.Context,
	ownerID uuid.UUID,
	reference string,
	fn store.MutateFn,
) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reference != "" {
		if _, done := s.references[reference]; done {
			return nil, store.ErrReferenceExists
		}
	}

	acct, err := s.ensureLocked(ownerID)
	if err != nil {
		return nil, err
	}

	snapshot := *acct
	m, err := fn(&snapshot)
	if err != nil {
		return nil, err
	}

	balance := acct.Balance + m.BalanceDelta
	reserved := acct.Reserved + m.ReservedDelta
	if balance < 0 || reserved < 0 {
		return nil, fmt.Errorf("%w: balance %d reserved %d after mutation",
			store.ErrInvalidEntity, balance, reserved)
	}

	for _, entry := range m.Entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	acct.Balance = balance
	acct.Reserved = reserved
	acct.UpdatedAt = time.Now().UTC()
	for _, entry := range m.Entries {
		copied := *entry
		s.entries[ownerID] = append(s.entries[ownerID], &copied)
	}
	if reference != "" {
		s.references[reference] = struct{}{}
	}

	result := *acct
	return &result, nil
}

// Entries implements store.AccountStore.
func (s *AccountStore) Entries(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	s.mu.Lock()
	all := make([]*domain.LedgerEntry, 0, len(s.entries[ownerID]))
	for _, entry := range s.entries[ownerID] {
		copied := *entry
		all = append(all, &copied)
	}
	s.mu.Unlock()

	// entries are appended in order, so reversing yields newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	return paginate(all, limit, offset), nil
}

// EntriesByReference implements store.AccountStore.
func (s *AccountStore) EntriesByReference(
	_ context.Context,
	ownerID uuid.UUID,
	reference string,
) ([]*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.LedgerEntry, 0)
	for _, entry := range s.entries[ownerID] {
		if entry.Reference == reference {
			copied := *entry
			matched = append(matched, &copied)
		}
	}
	return matched, nil
}

// SumEntries implements store.AccountStore.
func (s *AccountStore) SumEntries(_ context.Context, ownerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, entry := range s.entries[ownerID] {
		sum += entry.Amount
	}
	return sum, nil
}

func (s *AccountStore) ensureLocked(ownerID uuid.UUID) (*domain.CreditAccount, error) {
	if acct, ok := s.accounts[ownerID]; ok {
		return acct, nil
	}
	acct, err := domain.NewCreditAccount(ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.accounts[ownerID] = acct
	return acct, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
