package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountPending AccountStatus = "PENDING"
	AccountActive  AccountStatus = "ACTIVE"
	AccountFrozen  AccountStatus = "FROZEN"
	AccountClosed  AccountStatus = "CLOSED"
)

// VirtualAccount is a per-user, per-currency claim against the pooled
// master account of its currency. BalanceCents is a cached derivation of
// the account's ledger entries; Version increments on every
// balance-affecting write.
type VirtualAccount struct {
	ID           uuid.UUID
	OwnerUserID  string
	Currency     string
	IBAN         string
	Status       AccountStatus
	BalanceCents int64
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a VirtualAccount) HasSufficientFunds(amountCents int64) bool {
	return a.BalanceCents >= amountCents
}

// LedgerEntry is an immutable, append-only record attributing a signed
// balance change to a transaction.
type LedgerEntry struct {
	ID                uuid.UUID
	VirtualAccountID  uuid.UUID
	TransactionID     uuid.UUID
	AmountCents       int64
	BalanceAfterCents int64
	CreatedAt         time.Time
}

// MasterAccount is the external pooled account custodying real funds for
// all virtual accounts of one currency. Only the cached read of its
// external balance is ever refreshed; transfers never mutate it directly.
type MasterAccount struct {
	Currency                   string
	CorrespondentBankID        string
	ExternalAccountID          string
	IBAN                       string
	BIC                        string
	CachedExternalBalanceCents int64
	CachedAt                   time.Time
}

type TransactionType string

const (
	TypeDeposit          TransactionType = "DEPOSIT"
	TypeWithdrawal       TransactionType = "WITHDRAWAL"
	TypeInternalTransfer TransactionType = "INTERNAL_TRANSFER"
	TypeInboundTransfer  TransactionType = "INBOUND_TRANSFER"
	TypeOutboundTransfer TransactionType = "OUTBOUND_TRANSFER"
	TypeExchange         TransactionType = "EXCHANGE"
	TypeAccountCreation  TransactionType = "ACCOUNT_CREATION"
)

// RequiresExternalSettlement reports whether the transaction type moves
// money at the correspondent bank, as opposed to rebooking claims inside
// the same pool.
func (t TransactionType) RequiresExternalSettlement() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeInboundTransfer, TypeOutboundTransfer, TypeAccountCreation:
		return true
	}
	return false
}

type TransactionState string

const (
	StateInitiated         TransactionState = "INITIATED"
	StateValidated         TransactionState = "VALIDATED"
	StateRateLocked        TransactionState = "RATE_LOCKED"
	StateExternalRequested TransactionState = "EXTERNAL_REQUESTED"
	StateChallengePending  TransactionState = "CHALLENGE_PENDING"
	StateChallengeAnswered TransactionState = "CHALLENGE_ANSWERED"
	StateExternalConfirmed TransactionState = "EXTERNAL_CONFIRMED"
	StatePosting           TransactionState = "POSTING"
	StateCompleted         TransactionState = "COMPLETED"
	StateFailed            TransactionState = "FAILED"
	StateExpired           TransactionState = "EXPIRED"
	StateCancelled         TransactionState = "CANCELLED"
)

func (s TransactionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExpired, StateCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a transaction in this state may still be
// cancelled. Once an external call has been issued the flow must run to a
// terminal state so no challenge is orphaned at the correspondent bank.
func (s TransactionState) Cancellable() bool {
	return s == StateInitiated || s == StateValidated
}

// Transaction records a single money movement from creation to its
// terminal state. Rows are never deleted.
type Transaction struct {
	ID                  uuid.UUID
	Type                TransactionType
	State               TransactionState
	FromAccountID       *uuid.UUID
	ToAccountID         *uuid.UUID
	SourceCurrency      string
	TargetCurrency      string
	SourceAmountCents   int64
	TargetAmountCents   int64
	AppliedRate         *decimal.Decimal
	CounterpartyRef     string
	CounterpartyIBAN    string
	ExternalRequestID   string
	ExternalChallengeID string
	ChallengeDeadline   *time.Time
	IdempotencyKey      string
	Attempts            int
	FailureReason       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (t Transaction) CrossCurrency() bool {
	return t.TargetCurrency != "" && t.TargetCurrency != t.SourceCurrency
}

// Posting is one signed balance change requested against a virtual
// account. A transaction may carry several, e.g. one debit plus one
// credit for an internal transfer.
type Posting struct {
	AccountID   uuid.UUID
	AmountCents int64
}

// RateQuote is the result of a rate lookup. Rate is the interbank rate;
// CustomerRate has the configured margin already applied and is what gets
// locked onto a transaction.
type RateQuote struct {
	Base         string
	Quote        string
	Rate         decimal.Decimal
	CustomerRate decimal.Decimal
	Source       string
	Timestamp    time.Time
}

// ConvertCents applies the customer rate to an amount in source minor
// units, rounding to the nearest target minor unit.
func (q RateQuote) ConvertCents(sourceCents int64) int64 {
	return decimal.NewFromInt(sourceCents).Mul(q.CustomerRate).Round(0).IntPart()
}

// ExternalAccount is a correspondent-bank account reference returned by
// the bank adapter.
type ExternalAccount struct {
	ID   string
	IBAN string
}

// ExternalChallenge is the correspondent bank's confirmation step (TAN)
// attached to a transaction request.
type ExternalChallenge struct {
	ID     string
	Method string
}

type ExternalRequest struct {
	RequestID string
	Challenge *ExternalChallenge
}

type ExternalRequestStatus string

const (
	ExternalPending   ExternalRequestStatus = "PENDING"
	ExternalCompleted ExternalRequestStatus = "COMPLETED"
	ExternalFailed    ExternalRequestStatus = "FAILED"
)
