package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"remit/internal/core"
)

// MasterAccountStore persists the per-currency pooled account records.
type MasterAccountStore struct {
	db *sql.DB
}

func NewMasterAccountStore(db *sql.DB) MasterAccountStore {
	return MasterAccountStore{db: db}
}

func (s MasterAccountStore) Get(ctx context.Context, currency string) (core.MasterAccount, error) {
	query := `
		SELECT currency, correspondent_bank_id, external_account_id, iban, bic,
		       cached_external_balance_cents, cached_at
		FROM master_accounts
		WHERE currency = ?
	`

	var account core.MasterAccount
	var cachedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, currency).Scan(
		&account.Currency,
		&account.CorrespondentBankID,
		&account.ExternalAccountID,
		&account.IBAN,
		&account.BIC,
		&account.CachedExternalBalanceCents,
		&cachedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.MasterAccount{}, core.ErrUnsupportedCurrency
		}
		return core.MasterAccount{}, fmt.Errorf("failed to get master account: %w", err)
	}

	if cachedAt.Valid {
		account.CachedAt = cachedAt.Time
	}

	return account, nil
}

// Upsert registers pooled-account routing details. The cached balance is
// left alone on conflict; only the reconciliation path writes it.
func (s MasterAccountStore) Upsert(ctx context.Context, account core.MasterAccount) error {
	query := `
		INSERT INTO master_accounts (currency, correspondent_bank_id, external_account_id, iban, bic, cached_external_balance_cents, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (currency) DO UPDATE SET
			correspondent_bank_id = excluded.correspondent_bank_id,
			external_account_id = excluded.external_account_id,
			iban = excluded.iban,
			bic = excluded.bic
	`

	_, err := s.db.ExecContext(ctx, query,
		account.Currency,
		account.CorrespondentBankID,
		account.ExternalAccountID,
		account.IBAN,
		account.BIC,
		account.CachedExternalBalanceCents,
		nullableTime(timePtr(account.CachedAt)),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert master account: %w", err)
	}

	return nil
}

func (s MasterAccountStore) UpdateCachedBalance(ctx context.Context, currency string, balanceCents int64) error {
	query := `
		UPDATE master_accounts
		SET cached_external_balance_cents = ?, cached_at = ?
		WHERE currency = ?
	`

	result, err := s.db.ExecContext(ctx, query, balanceCents, time.Now().UTC(), currency)
	if err != nil {
		return fmt.Errorf("failed to update cached balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return core.ErrUnsupportedCurrency
	}

	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
