package core

import (
	"context"
)

//go:generate go tool go.uber.org/mock/mockgen -source=collaborators.go -destination=collaborators_mock.go -package=core

// BankClient is the correspondent-bank adapter boundary. Calls may fail
// with ErrExternalTimeout (retryable) or ErrExternalRejected
// (non-retryable); implementations own their retry and idempotency
// behavior.
type BankClient interface {
	CreateAccount(ctx context.Context, currency, ownerRef string) (ExternalAccount, error)
	CreateTransactionRequest(ctx context.Context, fromRef, toRef string, amountCents int64, currency, idempotencyKey string) (ExternalRequest, error)
	AnswerChallenge(ctx context.Context, requestID, challengeID, answer string) error
	GetTransactionRequestStatus(ctx context.Context, requestID string) (ExternalRequestStatus, error)
	GetAccountBalance(ctx context.Context, accountID string) (int64, string, error)
}

// RateProvider quotes currency conversion rates. It is read-only and
// never touches ledger state.
type RateProvider interface {
	GetRate(ctx context.Context, base, quote string) (RateQuote, error)
}
