package core

import (
	"context"
	"time"
)

// MasterAccountRegistry tracks, per currency, which correspondent-bank
// account holds the pooled funds and its last-known external balance.
type MasterAccountRegistry struct {
	repo   MasterAccountRepository
	bank   BankClient
	logger Logger
	now    func() time.Time
}

func NewMasterAccountRegistry(repo MasterAccountRepository, bank BankClient, logger Logger) *MasterAccountRegistry {
	return &MasterAccountRegistry{
		repo:   repo,
		bank:   bank,
		logger: logger,
		now:    time.Now,
	}
}

func (m *MasterAccountRegistry) Get(ctx context.Context, currency string) (MasterAccount, error) {
	return m.repo.Get(ctx, currency)
}

// Seed registers the configured pooled accounts. At most one master
// account exists per currency; re-seeding the same currency overwrites
// the routing details but not the cached balance.
func (m *MasterAccountRegistry) Seed(ctx context.Context, accounts []MasterAccount) error {
	for _, account := range accounts {
		if err := m.repo.Upsert(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// RefreshExternalBalance reads the pooled account's balance from the
// correspondent bank and updates the cached copy. Used by reconciliation
// and by pre-flight checks, never by the transfer path directly.
func (m *MasterAccountRegistry) RefreshExternalBalance(ctx context.Context, currency string) (MasterAccount, error) {
	account, err := m.repo.Get(ctx, currency)
	if err != nil {
		return MasterAccount{}, err
	}

	balanceCents, _, err := m.bank.GetAccountBalance(ctx, account.ExternalAccountID)
	if err != nil {
		return MasterAccount{}, err
	}

	if err = m.repo.UpdateCachedBalance(ctx, currency, balanceCents); err != nil {
		return MasterAccount{}, err
	}

	account.CachedExternalBalanceCents = balanceCents
	account.CachedAt = m.now().UTC()
	return account, nil
}

// EnsurePoolCovers refreshes the pool balance and fails with
// ErrPoolInsufficient if the pooled funds cannot cover an outgoing
// settlement of the given amount.
func (m *MasterAccountRegistry) EnsurePoolCovers(ctx context.Context, currency string, amountCents int64) error {
	account, err := m.RefreshExternalBalance(ctx, currency)
	if err != nil {
		return err
	}

	if account.CachedExternalBalanceCents < amountCents {
		m.logger.WarnContext(ctx, "pool cannot cover settlement",
			"currency", currency,
			"pool_balance_cents", account.CachedExternalBalanceCents,
			"required_cents", amountCents,
		)
		return ErrPoolInsufficient
	}

	return nil
}
