package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrchestratorConfig struct {
	MaxExternalAttempts int           `envconfig:"ORCH_MAX_EXTERNAL_ATTEMPTS" default:"3"`
	RetryBackoff        time.Duration `envconfig:"ORCH_RETRY_BACKOFF" default:"500ms"`
	PollMaxAttempts     int           `envconfig:"ORCH_POLL_MAX_ATTEMPTS" default:"8"`
	PollBackoff         time.Duration `envconfig:"ORCH_POLL_BACKOFF" default:"250ms"`
	ChallengeTTL        time.Duration `envconfig:"ORCH_CHALLENGE_TTL" default:"15m"`
	ExpireInterval      time.Duration `envconfig:"ORCH_EXPIRE_INTERVAL" default:"1m"`
}

// InitiateRequest describes a money movement entering the engine.
type InitiateRequest struct {
	Type             TransactionType
	FromAccountID    *uuid.UUID
	ToAccountID      *uuid.UUID
	AmountCents      int64
	Currency         string
	TargetCurrency   string
	CounterpartyRef  string
	CounterpartyIBAN string
	IdempotencyKey   string
}

// Orchestrator drives each transaction through its state machine, from
// creation through external settlement to a terminal state, touching the
// ledger exactly once per transaction. No ledger lock is ever held while
// waiting on the correspondent bank: postings happen strictly after the
// external call chain has confirmed.
type Orchestrator struct {
	transactions TransactionRepository
	ledger       *Ledger
	registry     *MasterAccountRegistry
	rates        RateProvider
	bank         BankClient
	logger       Logger
	cfg          OrchestratorConfig
	locks        *keyedMutex
	now          func() time.Time
}

func NewOrchestrator(
	transactions TransactionRepository,
	ledger *Ledger,
	registry *MasterAccountRegistry,
	rates RateProvider,
	bank BankClient,
	logger Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		transactions: transactions,
		ledger:       ledger,
		registry:     registry,
		rates:        rates,
		bank:         bank,
		logger:       logger,
		cfg:          cfg,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// Initiate validates and persists a new transaction, then drives it as
// far as it can go without out-of-band input. Validation and
// insufficient-funds failures surface synchronously; external failures
// are absorbed into the transaction's terminal state. A replayed
// idempotency key returns the original transaction untouched.
func (o *Orchestrator) Initiate(ctx context.Context, req InitiateRequest) (Transaction, error) {
	if req.IdempotencyKey != "" {
		existing, err := o.transactions.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return Transaction{}, err
		}
	}

	now := o.now().UTC()
	tx := Transaction{
		ID:                uuid.New(),
		Type:              req.Type,
		State:             StateInitiated,
		FromAccountID:     req.FromAccountID,
		ToAccountID:       req.ToAccountID,
		SourceCurrency:    req.Currency,
		TargetCurrency:    req.TargetCurrency,
		SourceAmountCents: req.AmountCents,
		TargetAmountCents: req.AmountCents,
		CounterpartyRef:   req.CounterpartyRef,
		CounterpartyIBAN:  req.CounterpartyIBAN,
		IdempotencyKey:    req.IdempotencyKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if tx.TargetCurrency == "" {
		tx.TargetCurrency = tx.SourceCurrency
	}

	if err := o.transactions.Insert(ctx, tx); err != nil {
		return Transaction{}, err
	}

	o.locks.Lock(tx.ID)
	defer o.locks.Unlock(tx.ID)

	if err := o.validate(ctx, &tx); err != nil {
		o.terminate(ctx, &tx, StateFailed, err.Error())
		return tx, err
	}
	tx.State = StateValidated
	if err := o.persist(ctx, &tx); err != nil {
		return tx, err
	}

	return tx, o.advance(ctx, &tx)
}

// GetTransaction returns the transaction snapshot for status polling.
func (o *Orchestrator) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return o.transactions.GetByID(ctx, id)
}

// AnswerChallenge supplies the out-of-band challenge answer and resumes
// the suspended flow through confirmation and posting.
func (o *Orchestrator) AnswerChallenge(ctx context.Context, id uuid.UUID, answer string) (Transaction, error) {
	o.locks.Lock(id)
	defer o.locks.Unlock(id)

	tx, err := o.transactions.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	if tx.State != StateChallengePending {
		return tx, ErrNoChallengePending
	}
	if tx.ChallengeDeadline != nil && o.now().After(*tx.ChallengeDeadline) {
		o.terminate(ctx, &tx, StateExpired, "challenge not answered before deadline")
		return tx, ErrChallengeExpired
	}

	if err = o.bank.AnswerChallenge(ctx, tx.ExternalRequestID, tx.ExternalChallengeID, answer); err != nil {
		if errors.Is(err, ErrExternalRejected) {
			o.terminate(ctx, &tx, StateFailed, "challenge answer rejected")
		}
		return tx, err
	}

	tx.State = StateChallengeAnswered
	if err = o.persist(ctx, &tx); err != nil {
		return tx, err
	}

	return tx, o.advance(ctx, &tx)
}

// Cancel aborts a transaction that has not yet issued any external call.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (Transaction, error) {
	o.locks.Lock(id)
	defer o.locks.Unlock(id)

	tx, err := o.transactions.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	if !tx.State.Cancellable() {
		return tx, ErrNotCancellable
	}

	o.terminate(ctx, &tx, StateCancelled, "cancelled by caller")
	return tx, nil
}

// ResumeInFlight picks up transactions interrupted mid-flow by a process
// restart and drives each from its last recorded state. Transactions
// suspended on a challenge stay suspended until their answer arrives or
// the expirer sweeps them.
func (o *Orchestrator) ResumeInFlight(ctx context.Context) error {
	stuck, err := o.transactions.ListByStates(ctx,
		StateValidated,
		StateRateLocked,
		StateExternalRequested,
		StateChallengeAnswered,
		StateExternalConfirmed,
		StatePosting,
	)
	if err != nil {
		return err
	}

	for _, tx := range stuck {
		o.logger.InfoContext(ctx, "resuming in-flight transaction",
			"transaction_id", tx.ID,
			"state", tx.State,
		)

		o.locks.Lock(tx.ID)
		// Re-read under the lock: a concurrent resume may already have
		// driven this transaction to a terminal state.
		current, gerr := o.transactions.GetByID(ctx, tx.ID)
		if gerr == nil && !current.State.IsTerminal() {
			err = o.advance(ctx, &current)
		} else {
			err = gerr
		}
		o.locks.Unlock(tx.ID)
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to resume transaction",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}

	return nil
}

// ExpireStaleChallenges moves challenge-pending transactions past their
// deadline to EXPIRED. Expired transactions have produced no ledger
// entries, so no funds move.
func (o *Orchestrator) ExpireStaleChallenges(ctx context.Context) error {
	pending, err := o.transactions.ListByStates(ctx, StateChallengePending)
	if err != nil {
		return err
	}

	now := o.now()
	for _, tx := range pending {
		if tx.ChallengeDeadline == nil || now.Before(*tx.ChallengeDeadline) {
			continue
		}

		o.locks.Lock(tx.ID)
		current, gerr := o.transactions.GetByID(ctx, tx.ID)
		if gerr == nil && current.State == StateChallengePending {
			o.terminate(ctx, &current, StateExpired, "challenge not answered before deadline")
		}
		o.locks.Unlock(tx.ID)
	}

	return nil
}

// RunExpirer sweeps stale challenges on an interval until the context is
// cancelled.
func (o *Orchestrator) RunExpirer(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.ExpireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.ExpireStaleChallenges(ctx); err != nil {
				o.logger.ErrorContext(ctx, "challenge expiry sweep failed", "error", err)
			}
		}
	}
}

// advance runs state-machine steps until the transaction reaches a
// terminal state or suspends waiting for a challenge answer. The caller
// must hold the transaction's lock.
func (o *Orchestrator) advance(ctx context.Context, tx *Transaction) error {
	for !tx.State.IsTerminal() {
		var err error

		switch tx.State {
		case StateInitiated:
			if err = o.validate(ctx, tx); err != nil {
				o.terminate(ctx, tx, StateFailed, err.Error())
				return err
			}
			tx.State = StateValidated
			err = o.persist(ctx, tx)

		case StateValidated:
			if tx.CrossCurrency() {
				err = o.stepLockRate(ctx, tx)
				break
			}
			if tx.Type.RequiresExternalSettlement() {
				err = o.stepRequestExternal(ctx, tx)
				break
			}
			tx.State = StatePosting
			err = o.persist(ctx, tx)

		case StateRateLocked:
			if tx.Type.RequiresExternalSettlement() {
				err = o.stepRequestExternal(ctx, tx)
				break
			}
			tx.State = StatePosting
			err = o.persist(ctx, tx)

		case StateExternalRequested:
			err = o.stepAwaitExternal(ctx, tx)

		case StateChallengePending:
			// Suspended until AnswerChallenge or the expirer acts.
			return nil

		case StateChallengeAnswered:
			err = o.stepAwaitExternal(ctx, tx)

		case StateExternalConfirmed:
			tx.State = StatePosting
			err = o.persist(ctx, tx)

		case StatePosting:
			err = o.stepPost(ctx, tx)

		default:
			return fmt.Errorf("transaction %s in unknown state %s", tx.ID, tx.State)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// validate enforces the per-type preconditions. The switch is the single
// exhaustive dispatch over transaction types; an unlisted type is an
// error, not a silent pass.
func (o *Orchestrator) validate(ctx context.Context, tx *Transaction) error {
	if tx.Type != TypeAccountCreation && tx.SourceAmountCents <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	if _, err := o.registry.Get(ctx, tx.SourceCurrency); err != nil {
		return err
	}
	if tx.CrossCurrency() {
		if _, err := o.registry.Get(ctx, tx.TargetCurrency); err != nil {
			return err
		}
	}

	switch tx.Type {
	case TypeDeposit, TypeInboundTransfer:
		return o.validateCredit(ctx, tx)

	case TypeWithdrawal, TypeOutboundTransfer:
		if tx.CounterpartyIBAN == "" && tx.Type == TypeOutboundTransfer {
			return fmt.Errorf("outbound transfer requires a counterparty IBAN")
		}
		return o.validateDebit(ctx, tx)

	case TypeInternalTransfer:
		if tx.CrossCurrency() {
			return fmt.Errorf("internal transfer cannot cross currencies")
		}
		if err := o.validateDebit(ctx, tx); err != nil {
			return err
		}
		return o.validateCredit(ctx, tx)

	case TypeExchange:
		if !tx.CrossCurrency() {
			return fmt.Errorf("exchange requires distinct source and target currencies")
		}
		if err := o.validateDebit(ctx, tx); err != nil {
			return err
		}
		return o.validateCredit(ctx, tx)

	case TypeAccountCreation:
		if tx.ToAccountID == nil {
			return fmt.Errorf("account creation requires a target account")
		}
		account, err := o.ledger.GetAccount(ctx, *tx.ToAccountID)
		if err != nil {
			return err
		}
		if account.Status != AccountPending {
			return fmt.Errorf("account %s is not pending activation", account.ID)
		}
		return nil
	}

	return fmt.Errorf("unhandled transaction type %s", tx.Type)
}

func (o *Orchestrator) validateDebit(ctx context.Context, tx *Transaction) error {
	if tx.FromAccountID == nil {
		return fmt.Errorf("%s requires a source account", tx.Type)
	}

	account, err := o.ledger.GetAccount(ctx, *tx.FromAccountID)
	if err != nil {
		return err
	}
	if account.Status != AccountActive {
		return ErrAccountNotActive
	}
	if account.Currency != tx.SourceCurrency {
		return fmt.Errorf("source account holds %s, not %s", account.Currency, tx.SourceCurrency)
	}
	if !account.HasSufficientFunds(tx.SourceAmountCents) {
		return ErrInsufficientFunds
	}

	return nil
}

func (o *Orchestrator) validateCredit(ctx context.Context, tx *Transaction) error {
	if tx.ToAccountID == nil {
		return fmt.Errorf("%s requires a destination account", tx.Type)
	}

	account, err := o.ledger.GetAccount(ctx, *tx.ToAccountID)
	if err != nil {
		return err
	}
	if account.Status != AccountActive {
		return ErrAccountNotActive
	}
	if account.Currency != tx.TargetCurrency {
		return fmt.Errorf("destination account holds %s, not %s", account.Currency, tx.TargetCurrency)
	}

	return nil
}

// stepLockRate fetches and locks the conversion quote. The locked
// customer rate, not a re-fetched one, prices every downstream amount so
// the customer receives exactly the rate they were shown.
func (o *Orchestrator) stepLockRate(ctx context.Context, tx *Transaction) error {
	quote, err := o.rates.GetRate(ctx, tx.SourceCurrency, tx.TargetCurrency)
	if err != nil {
		o.terminate(ctx, tx, StateFailed, fmt.Sprintf("rate unavailable: %v", err))
		return err
	}

	rate := quote.CustomerRate
	tx.AppliedRate = &rate
	tx.TargetAmountCents = quote.ConvertCents(tx.SourceAmountCents)
	tx.State = StateRateLocked

	o.logger.InfoContext(ctx, "rate locked",
		"transaction_id", tx.ID,
		"pair", tx.SourceCurrency+"/"+tx.TargetCurrency,
		"customer_rate", rate.String(),
		"rate_source", quote.Source,
	)

	return o.persist(ctx, tx)
}

// stepRequestExternal creates (or retries) the settlement request at the
// correspondent bank. The transaction's idempotency key doubles as the
// bank-side dedup token, so a retried create never produces a second
// external movement.
func (o *Orchestrator) stepRequestExternal(ctx context.Context, tx *Transaction) error {
	if tx.Type == TypeAccountCreation {
		return o.stepCreateExternalAccount(ctx, tx)
	}

	master, err := o.registry.Get(ctx, tx.TargetCurrency)
	if err != nil {
		o.terminate(ctx, tx, StateFailed, err.Error())
		return err
	}

	var fromRef, toRef string
	amountCents := tx.TargetAmountCents
	switch tx.Type {
	case TypeDeposit, TypeInboundTransfer:
		fromRef = tx.CounterpartyRef
		toRef = master.IBAN
	case TypeWithdrawal, TypeOutboundTransfer:
		fromRef = master.ExternalAccountID
		toRef = tx.CounterpartyIBAN
		if err = o.registry.EnsurePoolCovers(ctx, tx.TargetCurrency, amountCents); err != nil {
			o.terminate(ctx, tx, StateFailed, err.Error())
			return err
		}
	}

	for {
		req, err := o.bank.CreateTransactionRequest(ctx, fromRef, toRef, amountCents, tx.TargetCurrency, tx.IdempotencyKey)
		if err != nil {
			if retry, rerr := o.absorbExternalError(ctx, tx, err); retry {
				continue
			} else {
				return rerr
			}
		}

		tx.ExternalRequestID = req.RequestID
		tx.Attempts = 0

		if req.Challenge != nil {
			deadline := o.now().UTC().Add(o.cfg.ChallengeTTL)
			tx.ExternalChallengeID = req.Challenge.ID
			tx.ChallengeDeadline = &deadline
			tx.State = StateChallengePending
		} else {
			tx.State = StateExternalRequested
		}

		return o.persist(ctx, tx)
	}
}

func (o *Orchestrator) stepCreateExternalAccount(ctx context.Context, tx *Transaction) error {
	for {
		account, err := o.bank.CreateAccount(ctx, tx.TargetCurrency, tx.CounterpartyRef)
		if err != nil {
			if retry, rerr := o.absorbExternalError(ctx, tx, err); retry {
				continue
			} else {
				return rerr
			}
		}

		tx.ExternalRequestID = account.ID
		tx.Attempts = 0
		tx.State = StateExternalConfirmed
		return o.persist(ctx, tx)
	}
}

// stepAwaitExternal polls the external request until it settles, with
// exponential backoff and a hard attempt bound so a wedged bank never
// leaves the transaction suspended indefinitely.
func (o *Orchestrator) stepAwaitExternal(ctx context.Context, tx *Transaction) error {
	backoff := o.cfg.PollBackoff

	for attempt := 0; attempt < o.cfg.PollMaxAttempts; attempt++ {
		status, err := o.bank.GetTransactionRequestStatus(ctx, tx.ExternalRequestID)
		if err != nil {
			if retry, rerr := o.absorbExternalError(ctx, tx, err); retry {
				continue
			} else {
				return rerr
			}
		}

		switch status {
		case ExternalCompleted:
			tx.State = StateExternalConfirmed
			return o.persist(ctx, tx)
		case ExternalFailed:
			o.terminate(ctx, tx, StateFailed, "settlement failed at correspondent bank")
			return nil
		}

		if err = o.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}

	o.terminate(ctx, tx, StateFailed, "external settlement did not complete in time")
	return nil
}

// stepPost writes the ledger entries, exactly once. DuplicateTransaction
// here means a prior attempt already committed between external
// confirmation and the state update, so it is success, not an error: the
// ledger is the source of truth for "already posted."
func (o *Orchestrator) stepPost(ctx context.Context, tx *Transaction) error {
	postings := o.postingsFor(tx)

	if len(postings) > 0 {
		_, err := o.ledger.PostEntries(ctx, tx.ID, postings)
		if err != nil && !errors.Is(err, ErrDuplicateTransaction) {
			o.terminate(ctx, tx, StateFailed, err.Error())
			return err
		}
	}

	if tx.Type == TypeAccountCreation && tx.ToAccountID != nil {
		if err := o.ledger.ActivateAccount(ctx, *tx.ToAccountID); err != nil {
			o.terminate(ctx, tx, StateFailed, err.Error())
			return err
		}
	}

	tx.State = StateCompleted
	tx.FailureReason = ""
	if err := o.persist(ctx, tx); err != nil {
		return err
	}

	o.logger.InfoContext(ctx, "transaction completed",
		"transaction_id", tx.ID,
		"type", tx.Type,
	)

	return nil
}

// postingsFor maps a confirmed transaction to its signed balance changes.
func (o *Orchestrator) postingsFor(tx *Transaction) []Posting {
	switch tx.Type {
	case TypeDeposit, TypeInboundTransfer:
		return []Posting{{AccountID: *tx.ToAccountID, AmountCents: tx.TargetAmountCents}}
	case TypeWithdrawal, TypeOutboundTransfer:
		return []Posting{{AccountID: *tx.FromAccountID, AmountCents: -tx.SourceAmountCents}}
	case TypeInternalTransfer:
		return []Posting{
			{AccountID: *tx.FromAccountID, AmountCents: -tx.SourceAmountCents},
			{AccountID: *tx.ToAccountID, AmountCents: tx.SourceAmountCents},
		}
	case TypeExchange:
		return []Posting{
			{AccountID: *tx.FromAccountID, AmountCents: -tx.SourceAmountCents},
			{AccountID: *tx.ToAccountID, AmountCents: tx.TargetAmountCents},
		}
	}
	return nil
}

// absorbExternalError implements the retry policy for bank calls:
// retryable errors back off and retry in place up to the attempt bound,
// everything else terminalizes the transaction. Returns retry=true when
// the caller should try the same step again.
func (o *Orchestrator) absorbExternalError(ctx context.Context, tx *Transaction, callErr error) (bool, error) {
	if !errors.Is(callErr, ErrExternalTimeout) {
		o.terminate(ctx, tx, StateFailed, callErr.Error())
		return false, nil
	}

	tx.Attempts++
	if tx.Attempts >= o.cfg.MaxExternalAttempts {
		o.terminate(ctx, tx, StateFailed, fmt.Sprintf("gave up after %d external attempts: %v", tx.Attempts, callErr))
		return false, nil
	}

	o.logger.WarnContext(ctx, "retrying external call",
		"transaction_id", tx.ID,
		"attempt", tx.Attempts,
		"error", callErr,
	)

	if err := o.persist(ctx, tx); err != nil {
		return false, err
	}
	if err := o.sleep(ctx, o.cfg.RetryBackoff*time.Duration(tx.Attempts)); err != nil {
		return false, err
	}

	return true, nil
}

func (o *Orchestrator) terminate(ctx context.Context, tx *Transaction, state TransactionState, reason string) {
	tx.State = state
	tx.FailureReason = reason

	if err := o.persist(ctx, tx); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist terminal state",
			"transaction_id", tx.ID,
			"state", state,
			"error", err,
		)
		return
	}

	if state != StateCompleted {
		o.logger.WarnContext(ctx, "transaction terminalized",
			"transaction_id", tx.ID,
			"state", state,
			"reason", reason,
		)
	}
}

func (o *Orchestrator) persist(ctx context.Context, tx *Transaction) error {
	tx.UpdatedAt = o.now().UTC()
	return o.transactions.Update(ctx, *tx)
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
