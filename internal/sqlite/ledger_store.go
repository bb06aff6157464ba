package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"remit/internal/core"
)

// LedgerStore persists virtual accounts and ledger entries. Mutating
// methods require a transaction-scoped store obtained through Atomic;
// read methods fall back to the pool when called outside one.
type LedgerStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewLedgerStore(db *sql.DB) LedgerStore {
	return LedgerStore{db: db}
}

func (s LedgerStore) querier() interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s LedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (core.VirtualAccount, error) {
	query := `
		SELECT id, owner_user_id, currency, iban, status, balance_cents, version, created_at, updated_at
		FROM virtual_accounts
		WHERE id = ?
	`

	return s.scanAccount(s.querier().QueryRowContext(ctx, query, id.String()))
}

func (s LedgerStore) GetActiveAccountByOwner(ctx context.Context, ownerUserID, currency string) (core.VirtualAccount, error) {
	query := `
		SELECT id, owner_user_id, currency, iban, status, balance_cents, version, created_at, updated_at
		FROM virtual_accounts
		WHERE owner_user_id = ? AND currency = ? AND status = 'ACTIVE'
	`

	return s.scanAccount(s.querier().QueryRowContext(ctx, query, ownerUserID, currency))
}

func (s LedgerStore) scanAccount(row *sql.Row) (core.VirtualAccount, error) {
	var account core.VirtualAccount
	var id string

	err := row.Scan(
		&id,
		&account.OwnerUserID,
		&account.Currency,
		&account.IBAN,
		&account.Status,
		&account.BalanceCents,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.VirtualAccount{}, core.ErrAccountNotFound
		}
		return core.VirtualAccount{}, fmt.Errorf("failed to get account: %w", err)
	}

	account.ID, err = uuid.Parse(id)
	if err != nil {
		return core.VirtualAccount{}, fmt.Errorf("corrupt account id %q: %w", id, err)
	}

	return account, nil
}

func (s LedgerStore) InsertAccount(ctx context.Context, account core.VirtualAccount) error {
	if s.tx == nil {
		return errors.New("InsertAccount must be called within Atomic transaction")
	}

	query := `
		INSERT INTO virtual_accounts (id, owner_user_id, currency, iban, status, balance_cents, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.tx.ExecContext(ctx, query,
		account.ID.String(),
		account.OwnerUserID,
		account.Currency,
		account.IBAN,
		account.Status,
		account.BalanceCents,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

func (s LedgerStore) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status core.AccountStatus) error {
	if s.tx == nil {
		return errors.New("UpdateAccountStatus must be called within Atomic transaction")
	}

	query := `
		UPDATE virtual_accounts
		SET status = ?
		WHERE id = ?
	`

	result, err := s.tx.ExecContext(ctx, query, status, id.String())
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return core.ErrAccountNotFound
	}

	return nil
}

// UpdateBalance writes the new balance guarded by the account's previous
// version. A zero-row update means another writer got there first, which
// the BEGIN IMMEDIATE discipline should prevent; it is surfaced rather
// than ignored.
func (s LedgerStore) UpdateBalance(ctx context.Context, account core.VirtualAccount) error {
	if s.tx == nil {
		return errors.New("UpdateBalance must be called within Atomic transaction")
	}

	query := `
		UPDATE virtual_accounts
		SET balance_cents = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := s.tx.ExecContext(ctx, query,
		account.BalanceCents,
		account.Version,
		account.UpdatedAt,
		account.ID.String(),
		account.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("stale version %d for account %s", account.Version-1, account.ID)
	}

	return nil
}

func (s LedgerStore) InsertEntries(ctx context.Context, entries []core.LedgerEntry) error {
	if s.tx == nil {
		return errors.New("InsertEntries must be called within Atomic transaction")
	}
	if len(entries) == 0 {
		return nil
	}

	baseQuery := `
		INSERT INTO ledger_entries (id, virtual_account_id, transaction_id, amount_cents, balance_after_cents, created_at)
		VALUES `
	valuePlaceholder := "(?, ?, ?, ?, ?, ?)"

	placeholders := make([]string, len(entries))
	args := make([]any, 0, len(entries)*6)
	for i, entry := range entries {
		placeholders[i] = valuePlaceholder
		args = append(args,
			entry.ID.String(),
			entry.VirtualAccountID.String(),
			entry.TransactionID.String(),
			entry.AmountCents,
			entry.BalanceAfterCents,
			entry.CreatedAt,
		)
	}

	_, err := s.tx.ExecContext(ctx, baseQuery+strings.Join(placeholders, ", "), args...)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entries: %w", err)
	}

	return nil
}

func (s LedgerStore) HasEntries(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE transaction_id = ?
	`

	var count int
	if err := s.querier().QueryRowContext(ctx, query, transactionID.String()).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count entries: %w", err)
	}

	return count > 0, nil
}

func (s LedgerStore) SumActiveBalances(ctx context.Context, currency string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(balance_cents), 0)
		FROM virtual_accounts
		WHERE currency = ? AND status = 'ACTIVE'
	`

	var sum int64
	if err := s.querier().QueryRowContext(ctx, query, currency).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}

	return sum, nil
}

// Atomic runs cb against a transaction-scoped store. The DSN's
// _txlock=immediate makes BEGIN take the reserved lock up front, so
// concurrent writers to the same account serialize with no window
// between the balance read and the balance write.
func (s LedgerStore) Atomic(ctx context.Context, cb func(core.LedgerRepository) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelDefault,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := LedgerStore{tx: tx}

	if err = cb(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
