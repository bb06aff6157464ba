package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"remit/internal/core"
)

func testOrchestratorConfig() core.OrchestratorConfig {
	return core.OrchestratorConfig{
		MaxExternalAttempts: 3,
		RetryBackoff:        time.Millisecond,
		PollMaxAttempts:     4,
		PollBackoff:         time.Millisecond,
		ChallengeTTL:        15 * time.Minute,
		ExpireInterval:      time.Minute,
	}
}

func newOrchestrator(t *testing.T, suite *TestSuite, cfg core.OrchestratorConfig) (*core.Orchestrator, *core.MockBankClient, *core.MockRateProvider) {
	t.Helper()

	ctrl := gomock.NewController(t)
	bank := core.NewMockBankClient(ctrl)
	rates := core.NewMockRateProvider(ctrl)
	registry := core.NewMasterAccountRegistry(suite.MasterStore, bank, suite.Logger)

	orch := core.NewOrchestrator(
		suite.TransactionStore,
		suite.Ledger,
		registry,
		rates,
		bank,
		suite.Logger,
		cfg,
	)

	return orch, bank, rates
}

func TestOrchestrator_InternalTransfer_Completes(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	fromID := suite.OpenActiveAccount(t, "alice", "EUR", 10000)
	toID := suite.OpenActiveAccount(t, "bob", "EUR", 0)

	orch, _, _ := newOrchestrator(t, suite, testOrchestratorConfig())

	tx, err := orch.Initiate(ctx, core.InitiateRequest{
		Type:          core.TypeInternalTransfer,
		FromAccountID: &fromID,
		ToAccountID:   &toID,
		AmountCents:   4000,
		Currency:      "EUR",
	})
	require.NoError(t, err)
	require.Equal(t, core.StateCompleted, tx.State)

	require.Equal(t, int64(6000), suite.GetBalance(t, fromID))
	require.Equal(t, int64(4000), suite.GetBalance(t, toID))
	require.Equal(t, 2, suite.CountEntries(t, tx.ID))
}

func TestOrchestrator_InternalTransfer_InsufficientFunds(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	fromID := suite.OpenActiveAccount(t, "alice", "EUR", 1000)
	toID := suite.OpenActiveAccount(t, "bob", "EUR", 0)

	orch, _, _ := newOrchestrator(t, suite, testOrchestratorConfig())

	tx, err := orch.Initiate(ctx, core.InitiateRequest{
		Type:          core.TypeInternalTransfer,
		FromAccountID: &fromID,
		ToAccountID:   &toID,
		AmountCents:   4000,
		Currency:      "EUR",
	})
	require.ErrorIs(t, err, core.ErrInsufficientFunds)
	require.Equal(t, core.StateFailed, tx.State)
	require.Equal(t, core.StateFailed, suite.GetTransactionState(t, tx.ID))

	require.Equal(t, int64(1000), suite.GetBalance(t, fromID))
	require.Equal(t, 0, suite.CountEntries(t, tx.ID))
}

func TestOrchestrator_Exchange_AppliesLockedCustomerRate(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	suite.SeedMaster(t, "HNL", 100000000)
	eurID := suite.OpenActiveAccount(t, "alice", "EUR", 10000)
	hnlID := suite.OpenActiveAccount(t, "alice-hnl", "HNL", 0)

	orch, _, rates := newOrchestrator(t, suite, testOrchestratorConfig())

	// Mid-market 30.0 with a 2.5% margin prices the customer at 29.25.
	rates.EXPECT().
		GetRate(gomock.Any(), "EUR", "HNL").
		Return(core.RateQuote{
			Base:         "EUR",
			Quote:        "HNL",
			Rate:         decimal.RequireFromString("30.0"),
			CustomerRate: decimal.RequireFromString("29.25"),
			Source:       "frankfurter",
			Timestamp:    time.Now(),
		}, nil).
		Times(1)

	tx, err := orch.Initiate(ctx, core.InitiateRequest{
		Type:           core.TypeExchange,
		FromAccountID:  &eurID,
		ToAccountID:    &hnlID,
		AmountCents:    10000,
		Currency:       "EUR",
		TargetCurrency: "HNL",
	})
	require.NoError(t, err)
	require.Equal(t, core.StateCompleted, tx.State)
	require.NotNil(t, tx.AppliedRate)
	require.Equal(t, "29.25", tx.AppliedRate.String())
	require.Equal(t, int64(292500), tx.TargetAmountCents)

	require.Equal(t, int64(0), suite.GetBalance(t, eurID))
	require.Equal(t, int64(292500), suite.GetBalance(t, hnlID), "100.00 EUR at 29.25 credits 2925.00 HNL")

	stored, err := suite.TransactionStore.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AppliedRate)
	require.Equal(t, "29.25", stored.AppliedRate.String(), "locked rate survives persistence")
}

func TestOrchestrator_Withdrawal_ChallengeFlow(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	accountID := suite.OpenActiveAccount(t, "alice", "EUR", 10000)

	orch, bank, _ := newOrchestrator(t, suite, testOrchestratorConfig())

	bank.EXPECT().
		GetAccountBalance(gomock.Any(), "pool-EUR").
		Return(int64(100000000), "EUR", nil).
		Times(1)
	bank.EXPECT().
		CreateTransactionRequest(gomock.Any(), "pool-EUR", "HN54PISA000123", int64(4000), "EUR", "idem-w1").
		Return(core.ExternalRequest{
			RequestID: "req-1",
			Challenge: &core.ExternalChallenge{ID: "chal-1", Method: "tan"},
		}, nil).
		Times(1)

	tx, err := orch.Initiate(ctx, core.InitiateRequest{
		Type:             core.TypeWithdrawal,
		FromAccountID:    &accountID,
		AmountCents:      4000,
		Currency:         "EUR",
		CounterpartyIBAN: "HN54PISA000123",
		IdempotencyKey:   "idem-w1",
	})
	require.NoError(t, err)
	require.Equal(t, core.StateChallengePending, tx.State)
	require.Equal(t, "chal-1", tx.ExternalChallengeID)

	// Funds stay put while the challenge is open.
	require.Equal(t, int64(10000), suite.GetBalance(t, accountID))
	require.Equal(t, 0, suite.CountEntries(t, tx.ID))

	bank.EXPECT().
		AnswerChallenge(gomock.Any(), "req-1", "chal-1", "4711").
		Return(nil).
		Times(1)
	bank.EXPECT().
		GetTransactionRequestStatus(gomock.Any(), "req-1").
		Return(core.ExternalCompleted, nil).
		Times(1)

	tx, err = orch.AnswerChallenge(ctx, tx.ID, "4711")
	require.NoError(t, err)
	require.Equal(t, core.StateCompleted, tx.State)

	require.Equal(t, int64(6000), suite.GetBalance(t, accountID))
	require.Equal(t, 1, suite.CountEntries(t, tx.ID))
}

func TestOrchestrator_ChallengeExpiry_MovesNoFunds(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	accountID := suite.OpenActiveAccount(t, "alice", "EUR", 10000)

	// A TTL in the past makes the challenge stale the moment it is issued.
	cfg := testOrchestratorConfig()
	cfg.ChallengeTTL = -time.Minute

	orch, bank, _ := newOrchestrator(t, suite, cfg)

	bank.EXPECT().
		GetAccountBalance(gomock.Any(), "pool-EUR").
		Return(int64(100000000), "EUR", nil).
		Times(1)
	bank.EXPECT().
		CreateTransactionRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(core.ExternalRequest{
			RequestID: "req-1",
			Challenge: &core.ExternalChallenge{ID: "chal-1", Method: "tan"},
		}, nil).
		Times(1)

	tx, err := orch.Initiate(ctx, core.InitiateRequest{
		Type:             core.TypeWithdrawal,
		FromAccountID:    &accountID,
		AmountCents:      4000,
		Currency:         "EUR",
		CounterpartyIBAN: "HN54PISA000123",
	})
	require.NoError(t, err)
	require.Equal(t, core.StateChallengePending, tx.State)

	require.NoError(t, orch.ExpireStaleChallenges(ctx))

	require.Equal(t, core.StateExpired, suite.GetTransactionState(t, tx.ID))
	require.Equal(t, int64(10000), suite.GetBalance(t, accountID), "expired challenge must not move funds")
	require.Equal(t, 0, suite.CountEntries(t, tx.ID))

	// Answering after expiry is refused.
	_, err = orch.AnswerChallenge(ctx, tx.ID, "4711")
	require.ErrorIs(t, err, core.ErrNoChallengePending)
}

func TestOrchestrator_ResumeAfterCrash_PostsExactlyOnce(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	accountID := suite.OpenActiveAccount(t, "alice", "EUR", 0)

	// Simulate a crash between external confirmation and posting: the
	// transaction row survives in EXTERNAL_CONFIRMED with no entries.
	now := time.Now().UTC()
	txID := uuid.New()
	err := suite.TransactionStore.Insert(ctx, core.Transaction{
		ID:                txID,
		Type:              core.TypeDeposit,
		State:             core.StateExternalConfirmed,
		ToAccountID:       &accountID,
		SourceCurrency:    "EUR",
		TargetCurrency:    "EUR",
		SourceAmountCents: 5000,
		TargetAmountCents: 5000,
		ExternalRequestID: "req-crash",
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)

	orch, _, _ := newOrchestrator(t, suite, testOrchestratorConfig())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = orch.ResumeInFlight(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, core.StateCompleted, suite.GetTransactionState(t, txID))
	require.Equal(t, int64(5000), suite.GetBalance(t, accountID))
	require.Equal(t, 1, suite.CountEntries(t, txID), "resume must post the ledger entries exactly once")
}

func TestOrchestrator_IdempotentInitiate(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	suite.SeedMaster(t, "EUR", 100000000)
	fromID := suite.OpenActiveAccount(t, "alice", "EUR", 10000)
	toID := suite.OpenActiveAccount(t, "bob", "EUR", 0)

	orch, _, _ := newOrchestrator(t, suite, testOrchestratorConfig())

	req := core.InitiateRequest{
		Type:           core.TypeInternalTransfer,
		FromAccountID:  &fromID,
		ToAccountID:    &toID,
		AmountCents:    4000,
		Currency:       "EUR",
		IdempotencyKey: "idem-t1",
	}

	first, err := orch.Initiate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, core.StateCompleted, first.State)

	second, err := orch.Initiate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "replayed idempotency key returns the original transaction")

	require.Equal(t, int64(6000), suite.GetBalance(t, fromID), "replay must not debit twice")
}
