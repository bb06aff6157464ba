package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"remit/internal/core"
)

type OpenAccountRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
}

type AccountResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	IBAN     string `json:"iban"`
	Status   string `json:"status"`
}

type BalanceResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Version  int64  `json:"version"`
}

type InitiateTransactionRequest struct {
	Type             string `json:"type" validate:"required"`
	FromAccountID    string `json:"from_account_id,omitempty" validate:"omitempty,uuid4"`
	ToAccountID      string `json:"to_account_id,omitempty" validate:"omitempty,uuid4"`
	Amount           string `json:"amount" validate:"required"`
	Currency         string `json:"currency" validate:"required,len=3,uppercase"`
	TargetCurrency   string `json:"target_currency,omitempty" validate:"omitempty,len=3,uppercase"`
	CounterpartyRef  string `json:"counterparty_ref,omitempty"`
	CounterpartyIBAN string `json:"counterparty_iban,omitempty"`
}

type TransactionResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	State          string `json:"state"`
	FromAccountID  string `json:"from_account_id,omitempty"`
	ToAccountID    string `json:"to_account_id,omitempty"`
	SourceCurrency string `json:"source_currency"`
	TargetCurrency string `json:"target_currency"`
	SourceAmount   string `json:"source_amount"`
	TargetAmount   string `json:"target_amount"`
	AppliedRate    string `json:"applied_rate,omitempty"`
	ChallengeID    string `json:"challenge_id,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type AnswerChallengeRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// ParseAmountToCents converts a decimal amount string to minor units,
// rejecting anything finer than two decimal places.
func ParseAmountToCents(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount format: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative")
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount has more than two decimal places")
	}

	return cents.IntPart(), nil
}

// FormatCents renders minor units as a two-decimal amount string.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func (req InitiateTransactionRequest) ToDomain(idempotencyKey string) (core.InitiateRequest, error) {
	amountCents, err := ParseAmountToCents(req.Amount)
	if err != nil {
		return core.InitiateRequest{}, err
	}

	out := core.InitiateRequest{
		Type:             core.TransactionType(req.Type),
		AmountCents:      amountCents,
		Currency:         req.Currency,
		TargetCurrency:   req.TargetCurrency,
		CounterpartyRef:  req.CounterpartyRef,
		CounterpartyIBAN: req.CounterpartyIBAN,
		IdempotencyKey:   idempotencyKey,
	}

	if req.FromAccountID != "" {
		id, err := uuid.Parse(req.FromAccountID)
		if err != nil {
			return core.InitiateRequest{}, fmt.Errorf("invalid from_account_id: %w", err)
		}
		out.FromAccountID = &id
	}
	if req.ToAccountID != "" {
		id, err := uuid.Parse(req.ToAccountID)
		if err != nil {
			return core.InitiateRequest{}, fmt.Errorf("invalid to_account_id: %w", err)
		}
		out.ToAccountID = &id
	}

	return out, nil
}

func toAccountResponse(account core.VirtualAccount) AccountResponse {
	return AccountResponse{
		ID:       account.ID.String(),
		UserID:   account.OwnerUserID,
		Currency: account.Currency,
		IBAN:     account.IBAN,
		Status:   string(account.Status),
	}
}

func toTransactionResponse(tx core.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             tx.ID.String(),
		Type:           string(tx.Type),
		State:          string(tx.State),
		SourceCurrency: tx.SourceCurrency,
		TargetCurrency: tx.TargetCurrency,
		SourceAmount:   FormatCents(tx.SourceAmountCents),
		TargetAmount:   FormatCents(tx.TargetAmountCents),
		ChallengeID:    tx.ExternalChallengeID,
		FailureReason:  tx.FailureReason,
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      tx.UpdatedAt.Format(time.RFC3339),
	}

	if tx.FromAccountID != nil {
		resp.FromAccountID = tx.FromAccountID.String()
	}
	if tx.ToAccountID != nil {
		resp.ToAccountID = tx.ToAccountID.String()
	}
	if tx.AppliedRate != nil {
		resp.AppliedRate = tx.AppliedRate.String()
	}

	return resp
}
