// Package ledger moves credits between a user's available balance, in-flight
// reservations, and spent usage. Every change is recorded as an immutable
// ledger entry so that the sum of entry amounts always equals the balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/metrics"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/store"
)

var (
	// ErrInsufficientFunds is returned when a reservation exceeds available credits.
	ErrInsufficientFunds = fmt.Errorf("ledger: %w", domain.ErrInsufficientFunds)

	// ErrAlreadySettled is returned when a reference was already settled or refunded.
	ErrAlreadySettled = errors.New("ledger: reservation already settled")

	// ErrReservationMismatch is returned when releasing more than the account holds.
	ErrReservationMismatch = errors.New("ledger: release exceeds reserved credits")
)

// OveragePolicy decides what happens when actual usage exceeds the reservation.
type OveragePolicy string

const (
	// OverageDebit charges the full actual cost as long as the balance covers it.
	// Whatever the balance cannot cover is recorded as a shortfall.
	OverageDebit OveragePolicy = "debit"

	// OverageCap never charges more than was reserved.
	OverageCap OveragePolicy = "cap"
)

// Ledger is the only component allowed to mutate credit accounts.
type Ledger struct {
	store  store.AccountStore
	policy OveragePolicy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithOveragePolicy sets the overage policy. Unknown values fall back to debit.
func WithOveragePolicy(policy OveragePolicy) Option {
	return func(l *Ledger) {
		if policy == OverageCap {
			l.policy = OverageCap
			return
		}
		l.policy = OverageDebit
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = log.With("component", "ledger")
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger backed by the given account store.
func New(s store.AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		policy: OverageDebit,
		logger: slog.Default().With("component", "ledger"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// WithStore returns a copy of the ledger that works on s, such as an
// account store bound to a transaction.
func (l *Ledger) WithStore(s store.AccountStore) *Ledger {
	bound := *l
	bound.store = s
	return &bound
}

// Policy returns the configured overage policy.
func (l *Ledger) Policy() OveragePolicy {
	return l.policy
}

// Reserve holds amount credits for an in-flight job. It either succeeds
// completely or leaves the account untouched.
func (l *Ledger) Reserve(ctx context.Context, owner uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reservation must be positive, got %d", domain.ErrInvalidAmount, amount)
	}

	if err := l.store.Reserve(ctx, owner, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			metrics.ReservationsRejected.Inc()
			return fmt.Errorf("%w: requested %d", ErrInsufficientFunds, amount)
		}
		return fmt.Errorf("failed to reserve credits: %w", err)
	}

	metrics.CreditsReserved.Add(float64(amount))
	logger.FromContextOrDefault(ctx, l.logger).Debug("credits reserved",
		"owner_id", owner,
		"amount", amount)
	return nil
}

// SettleRequest describes the reconciliation of one reservation.
type SettleRequest struct {
	Owner       uuid.UUID
	Reserved    int64
	Actual      int64
	Feature     string
	Description string
	Reference   string
}

// Settlement reports what a settle call did.
type Settlement struct {
	Charged   int64
	Released  int64
	Shortfall int64
	Account   *domain.CreditAccount
	Entries   []*domain.LedgerEntry
}

// Settle releases a reservation and charges the actual cost. It writes one
// USAGE entry for the charge and, when part of the reservation went unused,
// one ADJUSTMENT entry releasing the remainder. A second settle with the same
// reference returns ErrAlreadySettled.
func (l *Ledger) Settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	if req.Reserved < 0 || req.Actual < 0 {
		return nil, fmt.Errorf("%w: reserved %d actual %d", domain.ErrInvalidAmount, req.Reserved, req.Actual)
	}
	if req.Reserved == 0 && req.Actual == 0 {
		return nil, fmt.Errorf("%w: nothing to settle", domain.ErrInvalidAmount)
	}

	result := &Settlement{}
	now := l.now().UTC()

	acct, err := l.store.Apply(ctx, req.Owner, req.Reference,
		func(acct *domain.CreditAccount) (*store.AccountMutation, error) {
			if acct.Reserved < req.Reserved {
				return nil, fmt.Errorf("%w: holding %d, settling %d",
					ErrReservationMismatch, acct.Reserved, req.Reserved)
			}

			charge := l.charge(acct, req)
			consumed := min(charge, req.Reserved)

			result.Charged = charge
			result.Released = req.Reserved - consumed
			result.Shortfall = req.Actual - charge
			result.Entries = nil

			if charge > 0 {
				usage := &domain.LedgerEntry{
					ID:          uuid.New(),
					OwnerID:     req.Owner,
					Amount:      -charge,
					Released:    consumed,
					Kind:        domain.EntryKindUsage,
					Feature:     req.Feature,
					Description: req.Description,
					Reference:   req.Reference,
					Metadata: map[string]any{
						"estimated": req.Reserved,
						"actual":    req.Actual,
					},
					CreatedAt: now,
				}
				if result.Shortfall > 0 {
					usage.Metadata["shortfall"] = result.Shortfall
				}
				result.Entries = append(result.Entries, usage)
			}

			if result.Released > 0 {
				result.Entries = append(result.Entries, &domain.LedgerEntry{
					ID:          uuid.New(),
					OwnerID:     req.Owner,
					Released:    result.Released,
					Kind:        domain.EntryKindAdjustment,
					Feature:     req.Feature,
					Description: "unused reservation released",
					Reference:   req.Reference,
					CreatedAt:   now,
				})
			}

			return &store.AccountMutation{
				BalanceDelta:  -charge,
				ReservedDelta: -req.Reserved,
				Entries:       result.Entries,
			}, nil
		})
	if err != nil {
		if errors.Is(err, store.ErrReferenceExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, req.Reference)
		}
		return nil, fmt.Errorf("failed to settle credits: %w", err)
	}

	result.Account = acct
	metrics.CreditsSettled.Add(float64(result.Charged))
	if result.Released > 0 {
		metrics.CreditsReleased.WithLabelValues("adjustment").Add(float64(result.Released))
	}

	log := logger.FromContextOrDefault(ctx, l.logger)
	log.Info("credits settled",
		"owner_id", req.Owner,
		"reference", req.Reference,
		"reserved", req.Reserved,
		"actual", req.Actual,
		"charged", result.Charged,
		"released", result.Released)
	if result.Shortfall > 0 {
		log.Warn("usage exceeded what the balance could cover",
			"owner_id", req.Owner,
			"reference", req.Reference,
			"shortfall", result.Shortfall,
			"policy", l.policy)
	}

	return result, nil
}

// charge decides how much of the actual cost to debit. The result never
// drives the balance below the credits still reserved by other jobs.
func (l *Ledger) charge(acct *domain.CreditAccount, req SettleRequest) int64 {
	charge := req.Actual
	if charge <= req.Reserved {
		return charge
	}

	if l.policy == OverageCap {
		return req.Reserved
	}

	ceiling := acct.Balance - (acct.Reserved - req.Reserved)
	if charge > ceiling {
		charge = ceiling
	}
	return charge
}

// RefundRequest describes the release of a reservation with no charge.
type RefundRequest struct {
	Owner     uuid.UUID
	Amount    int64
	Reason    string
	Reference string
}

// RefundReservation returns held credits to the available pool without
// touching the balance. One REFUND entry records the release.
func (l *Ledger) RefundReservation(ctx context.Context, req RefundRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: refund must be positive, got %d", domain.ErrInvalidAmount, req.Amount)
	}

	now := l.now().UTC()
	_, err := l.store.Apply(ctx, req.Owner, req.Reference,
		func(acct *domain.CreditAccount) (*store.AccountMutation, error) {
			if acct.Reserved < req.Amount {
				return nil, fmt.Errorf("%w: holding %d, refunding %d",
					ErrReservationMismatch, acct.Reserved, req.Amount)
			}

			entry := &domain.LedgerEntry{
				ID:          uuid.New(),
				OwnerID:     req.Owner,
				Released:    req.Amount,
				Kind:        domain.EntryKindRefund,
				Description: req.Reason,
				Reference:   req.Reference,
				CreatedAt:   now,
			}

			return &store.AccountMutation{
				ReservedDelta: -req.Amount,
				Entries:       []*domain.LedgerEntry{entry},
			}, nil
		})
	if err != nil {
		if errors.Is(err, store.ErrReferenceExists) {
			return fmt.Errorf("%w: %s", ErrAlreadySettled, req.Reference)
		}
		return fmt.Errorf("failed to refund reservation: %w", err)
	}

	metrics.CreditsReleased.WithLabelValues("refund").Add(float64(req.Amount))
	logger.FromContextOrDefault(ctx, l.logger).Info("reservation refunded",
		"owner_id", req.Owner,
		"reference", req.Reference,
		"amount", req.Amount,
		"reason", req.Reason)
	return nil
}

// Credit grants credits to an owner, creating the account if needed.
// Purchases and renewals must be positive; adjustments may be negative but
// cannot take away credits that are reserved.
func (l *Ledger) Credit(
	ctx context.Context,
	owner uuid.UUID,
	amount int64,
	kind domain.EntryKind,
	description string,
) (*domain.LedgerEntry, error) {
	switch kind {
	case domain.EntryKindPurchase, domain.EntryKindRenewal:
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %s must be positive", domain.ErrInvalidAmount, kind)
		}
	case domain.EntryKindAdjustment:
		if amount == 0 {
			return nil, fmt.Errorf("%w: adjustment cannot be zero", domain.ErrInvalidAmount)
		}
	default:
		return nil, fmt.Errorf("%w: cannot grant credits with kind %q", domain.ErrValidation, kind)
	}

	entry, err := domain.NewLedgerEntry(owner, kind, amount, 0, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	entry.CreatedAt = l.now().UTC()

	_, err = l.store.Apply(ctx, owner, "",
		func(acct *domain.CreditAccount) (*store.AccountMutation, error) {
			if amount < 0 && acct.Available() < -amount {
				return nil, fmt.Errorf("%w: available %d, adjustment %d",
					ErrInsufficientFunds, acct.Available(), amount)
			}
			return &store.AccountMutation{
				BalanceDelta: amount,
				Entries:      []*domain.LedgerEntry{entry},
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	logger.FromContextOrDefault(ctx, l.logger).Info("credits granted",
		"owner_id", owner,
		"amount", amount,
		"kind", kind)
	return entry, nil
}

// Account returns the owner's account. Owners without an account have a
// zero balance.
func (l *Ledger) Account(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error) {
	acct, err := l.store.Get(ctx, owner)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.NewCreditAccount(owner)
		}
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}
	return acct, nil
}

// Entries lists the owner's ledger entries, newest first.
func (l *Ledger) Entries(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	entries, err := l.store.Entries(ctx, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// Charged returns the credits debited by the settlement recorded under
// reference, or zero when nothing was charged under it.
func (l *Ledger) Charged(ctx context.Context, owner uuid.UUID, reference string) (int64, error) {
	entries, err := l.store.EntriesByReference(ctx, owner, reference)
	if err != nil {
		return 0, fmt.Errorf("failed to load settlement %s: %w", reference, err)
	}

	var charged int64
	for _, entry := range entries {
		if entry.Kind == domain.EntryKindUsage {
			charged -= entry.Amount
		}
	}
	return charged, nil
}

// Reconciliation compares an account balance with its entry history.
type Reconciliation struct {
	OwnerID      uuid.UUID `json:"owner_id"`
	Balance      int64     `json:"balance"`
	Reserved     int64     `json:"reserved"`
	EntriesTotal int64     `json:"entries_total"`
	Drift        int64     `json:"drift"`
}

// Balanced reports whether the balance matches the sum of entries.
func (r Reconciliation) Balanced() bool {
	return r.Drift == 0
}

// Reconcile checks that the sum of the owner's entry amounts equals the balance.
func (l *Ledger) Reconcile(ctx context.Context, owner uuid.UUID) (*Reconciliation, error) {
	acct, err := l.Account(ctx, owner)
	if err != nil {
		return nil, err
	}

	total, err := l.store.SumEntries(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	rec := &Reconciliation{
		OwnerID:      owner,
		Balance:      acct.Balance,
		Reserved:     acct.Reserved,
		EntriesTotal: total,
		Drift:        acct.Balance - total,
	}

	if !rec.Balanced() {
		logger.FromContextOrDefault(ctx, l.logger).Error("ledger drift detected",
			"owner_id", owner,
			"balance", acct.Balance,
			"entries_total", total)
	}

	return rec, nil
}
