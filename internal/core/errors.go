package core

import (
	"errors"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateTransaction = errors.New("ledger entries already posted for transaction")
	ErrDuplicateAccount     = errors.New("active account already exists for user and currency")
	ErrUnsupportedCurrency  = errors.New("no master account configured for currency")
	ErrAccountNotFound      = errors.New("virtual account not found")
	ErrAccountNotActive     = errors.New("virtual account is not active")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotCancellable       = errors.New("transaction can no longer be cancelled")
	ErrChallengeExpired     = errors.New("challenge deadline has passed")
	ErrNoChallengePending   = errors.New("transaction has no pending challenge")
	ErrPoolInsufficient     = errors.New("master account cannot cover settlement")

	// ErrExternalTimeout marks a retryable failure talking to the
	// correspondent bank; ErrExternalRejected marks a definitive refusal.
	ErrExternalTimeout  = errors.New("external bank call timed out")
	ErrExternalRejected = errors.New("external bank rejected the request")
)
