package core

import (
	"context"

	"github.com/google/uuid"
)

//go:generate go tool go.uber.org/mock/mockgen -source=repository.go -destination=repository_mock.go -package=core

// LedgerRepository persists virtual accounts and their ledger entries.
// Mutating methods must be called inside an Atomic callback; Atomic runs
// the callback against a transaction-scoped repository and commits only
// if it returns nil.
type LedgerRepository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (VirtualAccount, error)
	GetActiveAccountByOwner(ctx context.Context, ownerUserID, currency string) (VirtualAccount, error)
	InsertAccount(ctx context.Context, account VirtualAccount) error
	UpdateAccountStatus(ctx context.Context, id uuid.UUID, status AccountStatus) error
	UpdateBalance(ctx context.Context, account VirtualAccount) error
	InsertEntries(ctx context.Context, entries []LedgerEntry) error
	HasEntries(ctx context.Context, transactionID uuid.UUID) (bool, error)
	SumActiveBalances(ctx context.Context, currency string) (int64, error)
	Atomic(ctx context.Context, cb func(r LedgerRepository) error) error
}

// TransactionRepository persists transactions across process restarts so
// in-flight flows can be resumed from their last recorded state.
type TransactionRepository interface {
	Insert(ctx context.Context, tx Transaction) error
	Update(ctx context.Context, tx Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Transaction, error)
	ListByStates(ctx context.Context, states ...TransactionState) ([]Transaction, error)
}

// MasterAccountRepository stores the per-currency pooled account records
// and their cached external balances.
type MasterAccountRepository interface {
	Get(ctx context.Context, currency string) (MasterAccount, error)
	Upsert(ctx context.Context, account MasterAccount) error
	UpdateCachedBalance(ctx context.Context, currency string, balanceCents int64) error
}
