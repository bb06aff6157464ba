package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxExternalAttempts: 3,
		RetryBackoff:        time.Millisecond,
		PollMaxAttempts:     4,
		PollBackoff:         time.Millisecond,
		ChallengeTTL:        15 * time.Minute,
		ExpireInterval:      time.Minute,
	}
}

type orchestratorMocks struct {
	transactions *MockTransactionRepository
	ledgerRepo   *MockLedgerRepository
	masters      *MockMasterAccountRepository
	rates        *MockRateProvider
	bank         *MockBankClient
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, orchestratorMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mocks := orchestratorMocks{
		transactions: NewMockTransactionRepository(ctrl),
		ledgerRepo:   NewMockLedgerRepository(ctrl),
		masters:      NewMockMasterAccountRepository(ctrl),
		rates:        NewMockRateProvider(ctrl),
		bank:         NewMockBankClient(ctrl),
	}

	ledger := NewLedger(mocks.ledgerRepo, mocks.masters, testLogger())
	registry := NewMasterAccountRegistry(mocks.masters, mocks.bank, testLogger())
	orchestrator := NewOrchestrator(mocks.transactions, ledger, registry, mocks.rates, mocks.bank, testLogger(), testOrchestratorConfig())

	return orchestrator, mocks
}

func TestOrchestrator_Initiate_IdempotentReplay(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)

	existing := Transaction{
		ID:             uuid.New(),
		Type:           TypeInternalTransfer,
		State:          StateCompleted,
		IdempotencyKey: "key-1",
	}

	mocks.transactions.EXPECT().
		GetByIdempotencyKey(gomock.Any(), "key-1").
		Return(existing, nil)

	tx, err := orchestrator.Initiate(context.Background(), InitiateRequest{
		Type:           TypeInternalTransfer,
		AmountCents:    100,
		Currency:       "EUR",
		IdempotencyKey: "key-1",
	})

	require.NoError(t, err)
	require.Equal(t, existing.ID, tx.ID, "replayed key must return the original transaction")
	require.Equal(t, StateCompleted, tx.State)
}

func TestOrchestrator_Initiate_InsufficientFundsIsSynchronous(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)
	fromID := uuid.New()

	mocks.transactions.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil)
	mocks.masters.EXPECT().
		Get(gomock.Any(), "EUR").
		Return(MasterAccount{Currency: "EUR"}, nil)
	mocks.ledgerRepo.EXPECT().
		GetAccount(gomock.Any(), fromID).
		Return(VirtualAccount{ID: fromID, Status: AccountActive, Currency: "EUR", BalanceCents: 5000}, nil)

	var failed Transaction
	mocks.transactions.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tx Transaction) error {
			failed = tx
			return nil
		})

	_, err := orchestrator.Initiate(context.Background(), InitiateRequest{
		Type:             TypeWithdrawal,
		FromAccountID:    &fromID,
		AmountCents:      6000,
		Currency:         "EUR",
		CounterpartyIBAN: "DE89370400440532013000",
	})

	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, StateFailed, failed.State, "transaction record must carry the terminal state")
}

func TestOrchestrator_Initiate_UnsupportedCurrency(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)
	toID := uuid.New()

	mocks.transactions.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	mocks.masters.EXPECT().
		Get(gomock.Any(), "XXX").
		Return(MasterAccount{}, ErrUnsupportedCurrency)
	mocks.transactions.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	_, err := orchestrator.Initiate(context.Background(), InitiateRequest{
		Type:        TypeDeposit,
		ToAccountID: &toID,
		AmountCents: 100,
		Currency:    "XXX",
	})

	require.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestOrchestrator_Cancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		state         TransactionState
		expectUpdate  bool
		expectedError error
	}{
		{
			name:         "validated transaction cancels",
			state:        StateValidated,
			expectUpdate: true,
		},
		{
			name:          "external call already issued",
			state:         StateExternalRequested,
			expectedError: ErrNotCancellable,
		},
		{
			name:          "terminal transaction",
			state:         StateCompleted,
			expectedError: ErrNotCancellable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			orchestrator, mocks := newTestOrchestrator(t)
			id := uuid.New()

			mocks.transactions.EXPECT().
				GetByID(gomock.Any(), id).
				Return(Transaction{ID: id, State: tt.state}, nil)

			if tt.expectUpdate {
				mocks.transactions.EXPECT().
					Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, tx Transaction) error {
						require.Equal(t, StateCancelled, tx.State)
						return nil
					})
			}

			tx, err := orchestrator.Cancel(context.Background(), id)

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
				require.Equal(t, StateCancelled, tx.State)
			}
		})
	}
}

func TestOrchestrator_AnswerChallenge_PastDeadlineExpires(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)
	id := uuid.New()
	deadline := time.Now().Add(-time.Minute)

	mocks.transactions.EXPECT().
		GetByID(gomock.Any(), id).
		Return(Transaction{
			ID:                id,
			State:             StateChallengePending,
			ChallengeDeadline: &deadline,
		}, nil)

	var expired Transaction
	mocks.transactions.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tx Transaction) error {
			expired = tx
			return nil
		})

	_, err := orchestrator.AnswerChallenge(context.Background(), id, "0000")

	require.ErrorIs(t, err, ErrChallengeExpired)
	require.Equal(t, StateExpired, expired.State)
}

func TestOrchestrator_AnswerChallenge_NoChallengePending(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)
	id := uuid.New()

	mocks.transactions.EXPECT().
		GetByID(gomock.Any(), id).
		Return(Transaction{ID: id, State: StateValidated}, nil)

	_, err := orchestrator.AnswerChallenge(context.Background(), id, "0000")
	require.ErrorIs(t, err, ErrNoChallengePending)
}

func TestOrchestrator_ExpireStaleChallenges(t *testing.T) {
	t.Parallel()

	orchestrator, mocks := newTestOrchestrator(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	staleID := uuid.New()
	freshID := uuid.New()

	stale := Transaction{ID: staleID, State: StateChallengePending, ChallengeDeadline: &past}
	fresh := Transaction{ID: freshID, State: StateChallengePending, ChallengeDeadline: &future}

	mocks.transactions.EXPECT().
		ListByStates(gomock.Any(), StateChallengePending).
		Return([]Transaction{stale, fresh}, nil)

	// Only the stale one gets re-read and expired.
	mocks.transactions.EXPECT().
		GetByID(gomock.Any(), staleID).
		Return(stale, nil)
	mocks.transactions.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tx Transaction) error {
			require.Equal(t, staleID, tx.ID)
			require.Equal(t, StateExpired, tx.State)
			return nil
		})

	require.NoError(t, orchestrator.ExpireStaleChallenges(context.Background()))
}
