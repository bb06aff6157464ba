package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"remit/internal/core"
)

//go:generate go tool go.uber.org/mock/mockgen -source=handlers.go -destination=engine_mock.go -package=http

// TransactionEngine is the orchestrator surface the handlers consume.
type TransactionEngine interface {
	Initiate(ctx context.Context, req core.InitiateRequest) (core.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error)
	AnswerChallenge(ctx context.Context, id uuid.UUID, answer string) (core.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (core.Transaction, error)
}

// AccountService is the ledger surface the handlers consume.
type AccountService interface {
	OpenAccount(ctx context.Context, ownerUserID, currency string) (core.VirtualAccount, error)
	GetAccount(ctx context.Context, id uuid.UUID) (core.VirtualAccount, error)
}

type Handler struct {
	engine   TransactionEngine
	accounts AccountService
	validate *validator.Validate
	logger   core.Logger
}

func NewHandler(engine TransactionEngine, accounts AccountService, logger core.Logger) Handler {
	return Handler{
		engine:   engine,
		accounts: accounts,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h Handler) PostAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.accounts.OpenAccount(ctx, req.UserID, req.Currency)
	if err != nil {
		h.writeError(ctx, w, err, "failed to open account")
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, toAccountResponse(account))
}

func (h Handler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetAccount(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err, "failed to get balance")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, BalanceResponse{
		Amount:   FormatCents(account.BalanceCents),
		Currency: account.Currency,
		Version:  account.Version,
	})
}

func (h Handler) PostTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InitiateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	domainReq, err := req.ToDomain(r.Header.Get("Idempotency-Key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Initiate(ctx, domainReq)
	if err != nil {
		// The transaction snapshot still carries the terminal state for
		// errors that produced one, but synchronous failures are the
		// caller's to handle.
		h.writeError(ctx, w, err, "failed to initiate transaction")
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, toTransactionResponse(tx))
}

func (h Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.GetTransaction(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err, "failed to get transaction")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, toTransactionResponse(tx))
}

func (h Handler) PostTransactionChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	var req AnswerChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.engine.AnswerChallenge(ctx, id, req.Answer)
	if err != nil {
		h.writeError(ctx, w, err, "failed to answer challenge")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, toTransactionResponse(tx))
}

func (h Handler) PostTransactionCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Cancel(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err, "failed to cancel transaction")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, toTransactionResponse(tx))
}

func (h Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, core.ErrAccountNotFound), errors.Is(err, core.ErrTransactionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrUnsupportedCurrency):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrDuplicateAccount),
		errors.Is(err, core.ErrNoChallengePending),
		errors.Is(err, core.ErrNotCancellable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, core.ErrChallengeExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, core.ErrAccountNotActive):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.ErrorContext(ctx, logMsg, "error", err)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}
