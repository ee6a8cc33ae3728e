package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/spf13/cobra"
)

func newCreditsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Grant and inspect credit balances",
	}

	cmd.PersistentFlags().String("owner", "", "Owner ID (UUID)")
	_ = cmd.MarkPersistentFlagRequired("owner")

	cmd.AddCommand(
		newCreditsGrantCmd(env),
		newCreditsBalanceCmd(env),
		newCreditsReconcileCmd(env),
	)
	return cmd
}

// withLedger loads configuration, opens the account store and runs fn with
// a ledger over it.
func withLedger(env *cliEnv, cmd *cobra.Command, fn func(l *ledger.Ledger, owner uuid.UUID) error) error {
	raw, _ := cmd.Flags().GetString("owner")
	owner, err := uuid.Parse(raw)
	if err != nil || owner == uuid.Nil {
		return fmt.Errorf("invalid owner ID %q", raw)
	}

	s, err := env.session(cmd)
	if err != nil {
		return err
	}

	accounts, closeFn, err := env.openAccounts(cmd.Context(), s.cfg, s.log)
	if err != nil {
		return err
	}
	defer closeFn()

	l := ledger.New(accounts,
		ledger.WithLogger(s.log),
		ledger.WithOveragePolicy(ledger.OveragePolicy(s.cfg.Ledger.OveragePolicy)))
	return fn(l, owner)
}

func newCreditsGrantCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to an owner's balance",
		Long: `Record a PURCHASE, RENEWAL or ADJUSTMENT entry for an owner. Adjustments
may be negative but cannot take more than the available credits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, _ := cmd.Flags().GetInt64("amount")
			kind, _ := cmd.Flags().GetString("kind")
			desc, _ := cmd.Flags().GetString("description")

			return withLedger(env, cmd, func(l *ledger.Ledger, owner uuid.UUID) error {
				entry, err := l.Credit(cmd.Context(), owner, amount,
					domain.EntryKind(strings.ToUpper(kind)), desc)
				if err != nil {
					return err
				}

				acct, err := l.Account(cmd.Context(), owner)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits (%s), balance %d\n",
					entry.Amount, entry.Kind, acct.Balance)
				return err
			})
		},
	}

	cmd.Flags().Int64("amount", 0, "Number of credits")
	cmd.Flags().String("kind", string(domain.EntryKindPurchase), "Entry kind: purchase, renewal or adjustment")
	cmd.Flags().String("description", "granted by operator", "Ledger entry description")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCreditsBalanceCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show an owner's balance and reserved credits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(env, cmd, func(l *ledger.Ledger, owner uuid.UUID) error {
				acct, err := l.Account(cmd.Context(), owner)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "balance %d\nreserved %d\navailable %d\n",
					acct.Balance, acct.Reserved, acct.Available())
				return err
			})
		},
	}
}

func newCreditsReconcileCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare an owner's balance with the sum of ledger entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(env, cmd, func(l *ledger.Ledger, owner uuid.UUID) error {
				r, err := l.Reconcile(cmd.Context(), owner)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if _, err := fmt.Fprintf(out, "balance %d\nentries %d\ndrift %d\n",
					r.Balance, r.EntriesTotal, r.Drift); err != nil {
					return err
				}
				if !r.Balanced() {
					return fmt.Errorf("ledger drift of %d credits for owner %s", r.Drift, owner)
				}
				return nil
			})
		},
	}
}
