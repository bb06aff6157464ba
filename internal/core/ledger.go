package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger is the system of record for who owns what. All balance changes
// flow through PostEntries; balances are only ever derived from committed
// ledger entries.
type Ledger struct {
	repo    LedgerRepository
	masters MasterAccountRepository
	logger  Logger
	now     func() time.Time
}

func NewLedger(repo LedgerRepository, masters MasterAccountRepository, logger Logger) *Ledger {
	return &Ledger{
		repo:    repo,
		masters: masters,
		logger:  logger,
		now:     time.Now,
	}
}

// OpenAccount creates a PENDING virtual account with zero balance for the
// given user and currency. The account is activated separately once any
// required external counterpart exists.
func (l *Ledger) OpenAccount(ctx context.Context, ownerUserID, currency string) (VirtualAccount, error) {
	if _, err := l.masters.Get(ctx, currency); err != nil {
		return VirtualAccount{}, err
	}

	account := VirtualAccount{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Currency:    currency,
		Status:      AccountPending,
		CreatedAt:   l.now().UTC(),
		UpdatedAt:   l.now().UTC(),
	}
	account.IBAN = VirtualIBAN(account.ID, currency)

	err := l.repo.Atomic(ctx, func(r LedgerRepository) error {
		_, err := r.GetActiveAccountByOwner(ctx, ownerUserID, currency)
		if err == nil {
			return ErrDuplicateAccount
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		return r.InsertAccount(ctx, account)
	})
	if err != nil {
		return VirtualAccount{}, err
	}

	l.logger.InfoContext(ctx, "virtual account opened",
		"account_id", account.ID,
		"owner", ownerUserID,
		"currency", currency,
	)

	return account, nil
}

// ActivateAccount flips a PENDING account to ACTIVE.
func (l *Ledger) ActivateAccount(ctx context.Context, id uuid.UUID) error {
	return l.repo.Atomic(ctx, func(r LedgerRepository) error {
		account, err := r.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if account.Status != AccountPending {
			return fmt.Errorf("cannot activate account in status %s", account.Status)
		}

		return r.UpdateAccountStatus(ctx, id, AccountActive)
	})
}

// CloseAccount soft-closes an account. Entries are retained.
func (l *Ledger) CloseAccount(ctx context.Context, id uuid.UUID) error {
	return l.repo.Atomic(ctx, func(r LedgerRepository) error {
		if _, err := r.GetAccount(ctx, id); err != nil {
			return err
		}
		return r.UpdateAccountStatus(ctx, id, AccountClosed)
	})
}

// PostEntries applies all postings for a transaction atomically: either
// every entry commits and every touched account's version increments, or
// nothing does. A second call with the same transaction id returns
// ErrDuplicateTransaction and leaves the ledger untouched, which makes
// retries after a crash safe.
func (l *Ledger) PostEntries(ctx context.Context, transactionID uuid.UUID, postings []Posting) (map[uuid.UUID]int64, error) {
	if len(postings) == 0 {
		return nil, fmt.Errorf("no postings for transaction %s", transactionID)
	}

	balances := make(map[uuid.UUID]int64, len(postings))

	err := l.repo.Atomic(ctx, func(r LedgerRepository) error {
		exists, err := r.HasEntries(ctx, transactionID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateTransaction
		}

		accounts := make(map[uuid.UUID]VirtualAccount)
		entries := make([]LedgerEntry, 0, len(postings))
		createdAt := l.now().UTC()

		for _, p := range postings {
			account, ok := accounts[p.AccountID]
			if !ok {
				account, err = r.GetAccount(ctx, p.AccountID)
				if err != nil {
					return err
				}
				if account.Status != AccountActive {
					return ErrAccountNotActive
				}
			}

			account.BalanceCents += p.AmountCents
			if account.BalanceCents < 0 {
				return ErrInsufficientFunds
			}
			accounts[p.AccountID] = account

			entries = append(entries, LedgerEntry{
				ID:                uuid.New(),
				VirtualAccountID:  p.AccountID,
				TransactionID:     transactionID,
				AmountCents:       p.AmountCents,
				BalanceAfterCents: account.BalanceCents,
				CreatedAt:         createdAt,
			})
		}

		for id, account := range accounts {
			account.Version++
			account.UpdatedAt = createdAt
			if err = r.UpdateBalance(ctx, account); err != nil {
				return err
			}
			balances[id] = account.BalanceCents
		}

		return r.InsertEntries(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	return balances, nil
}

// GetBalance returns the account's current balance and version. The
// version lets optimistic callers detect that a later write happened
// between their read and their own attempt.
func (l *Ledger) GetBalance(ctx context.Context, id uuid.UUID) (int64, int64, error) {
	account, err := l.repo.GetAccount(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return account.BalanceCents, account.Version, nil
}

func (l *Ledger) GetAccount(ctx context.Context, id uuid.UUID) (VirtualAccount, error) {
	return l.repo.GetAccount(ctx, id)
}

// Reconcile returns the signed difference between the sum of ACTIVE
// virtual balances for a currency and the cached external balance of its
// master account. A positive drift means internal claims exceed the
// pooled funds, which must never happen.
func (l *Ledger) Reconcile(ctx context.Context, currency string) (int64, error) {
	master, err := l.masters.Get(ctx, currency)
	if err != nil {
		return 0, err
	}

	internal, err := l.repo.SumActiveBalances(ctx, currency)
	if err != nil {
		return 0, err
	}

	return internal - master.CachedExternalBalanceCents, nil
}
