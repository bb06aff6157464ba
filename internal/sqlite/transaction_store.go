package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"remit/internal/core"
)

const transactionColumns = `
	id, type, state, from_account_id, to_account_id,
	source_currency, target_currency, source_amount_cents, target_amount_cents,
	applied_rate, counterparty_ref, counterparty_iban,
	external_request_id, external_challenge_id, challenge_deadline,
	idempotency_key, attempts, failure_reason, created_at, updated_at
`

// TransactionStore persists transactions durably so in-flight flows
// survive restarts and terminal ones remain auditable forever.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) TransactionStore {
	return TransactionStore{db: db}
}

func (s TransactionStore) Insert(ctx context.Context, tx core.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID.String(),
		tx.Type,
		tx.State,
		nullableID(tx.FromAccountID),
		nullableID(tx.ToAccountID),
		tx.SourceCurrency,
		tx.TargetCurrency,
		tx.SourceAmountCents,
		tx.TargetAmountCents,
		nullableRate(tx.AppliedRate),
		tx.CounterpartyRef,
		tx.CounterpartyIBAN,
		tx.ExternalRequestID,
		tx.ExternalChallengeID,
		nullableTime(tx.ChallengeDeadline),
		tx.IdempotencyKey,
		tx.Attempts,
		tx.FailureReason,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

func (s TransactionStore) Update(ctx context.Context, tx core.Transaction) error {
	query := `
		UPDATE transactions
		SET state = ?, target_amount_cents = ?, applied_rate = ?,
		    external_request_id = ?, external_challenge_id = ?, challenge_deadline = ?,
		    attempts = ?, failure_reason = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		tx.State,
		tx.TargetAmountCents,
		nullableRate(tx.AppliedRate),
		tx.ExternalRequestID,
		tx.ExternalChallengeID,
		nullableTime(tx.ChallengeDeadline),
		tx.Attempts,
		tx.FailureReason,
		tx.UpdatedAt,
		tx.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return core.ErrTransactionNotFound
	}

	return nil
}

func (s TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	return s.scanTransaction(s.db.QueryRowContext(ctx, query, id.String()))
}

func (s TransactionStore) GetByIdempotencyKey(ctx context.Context, key string) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = ?`
	return s.scanTransaction(s.db.QueryRowContext(ctx, query, key))
}

func (s TransactionStore) ListByStates(ctx context.Context, states ...core.TransactionState) ([]core.Transaction, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(states))
	args := make([]any, len(states))
	for i, state := range states {
		placeholders[i] = "?"
		args[i] = state
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE state IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		tx, err := s.scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s TransactionStore) scanTransaction(row *sql.Row) (core.Transaction, error) {
	tx, err := s.scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return tx, err
}

func (s TransactionStore) scanTransactionRow(row rowScanner) (core.Transaction, error) {
	var tx core.Transaction
	var id string
	var fromID, toID, appliedRate sql.NullString
	var deadline sql.NullTime

	err := row.Scan(
		&id,
		&tx.Type,
		&tx.State,
		&fromID,
		&toID,
		&tx.SourceCurrency,
		&tx.TargetCurrency,
		&tx.SourceAmountCents,
		&tx.TargetAmountCents,
		&appliedRate,
		&tx.CounterpartyRef,
		&tx.CounterpartyIBAN,
		&tx.ExternalRequestID,
		&tx.ExternalChallengeID,
		&deadline,
		&tx.IdempotencyKey,
		&tx.Attempts,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID, err = uuid.Parse(id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("corrupt transaction id %q: %w", id, err)
	}

	if fromID.Valid {
		parsed, err := uuid.Parse(fromID.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("corrupt from_account_id: %w", err)
		}
		tx.FromAccountID = &parsed
	}
	if toID.Valid {
		parsed, err := uuid.Parse(toID.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("corrupt to_account_id: %w", err)
		}
		tx.ToAccountID = &parsed
	}
	if appliedRate.Valid {
		rate, err := decimal.NewFromString(appliedRate.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("corrupt applied_rate: %w", err)
		}
		tx.AppliedRate = &rate
	}
	if deadline.Valid {
		t := deadline.Time
		tx.ChallengeDeadline = &t
	}

	return tx, nil
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableRate(rate *decimal.Decimal) any {
	if rate == nil {
		return nil
	}
	return rate.String()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
