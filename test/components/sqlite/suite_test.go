package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"remit/internal/core"
	"remit/internal/sqlite"
)

type TestSuite struct {
	DB     *sql.DB
	Client *sqlite.Client

	LedgerStore      sqlite.LedgerStore
	TransactionStore sqlite.TransactionStore
	MasterStore      sqlite.MasterAccountStore

	Ledger *core.Ledger
	Logger *slog.Logger
}

func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_remit.db")

	client, err := sqlite.NewClient(sqlite.Config{
		DatabasePath: dbPath,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  30 * time.Second,
		EnableWAL:    true,
	})
	require.NoError(t, err, "failed to create test client")
	require.NoError(t, client.Migrate(), "failed to apply schema")

	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledgerStore := sqlite.NewLedgerStore(client.DB())
	masterStore := sqlite.NewMasterAccountStore(client.DB())

	return &TestSuite{
		DB:               client.DB(),
		Client:           client,
		LedgerStore:      ledgerStore,
		TransactionStore: sqlite.NewTransactionStore(client.DB()),
		MasterStore:      masterStore,
		Ledger:           core.NewLedger(ledgerStore, masterStore, logger),
		Logger:           logger,
	}
}

// SeedMaster registers a pooled settlement account for the currency.
func (s *TestSuite) SeedMaster(t *testing.T, currency string, poolBalanceCents int64) {
	t.Helper()

	err := s.MasterStore.Upsert(context.Background(), core.MasterAccount{
		Currency:            currency,
		CorrespondentBankID: "pisa-hn",
		ExternalAccountID:   "pool-" + currency,
		IBAN:                "POOLIBAN" + currency,
		BIC:                 "PISAHNTE",
	})
	require.NoError(t, err, "failed to seed master account")

	err = s.MasterStore.UpdateCachedBalance(context.Background(), currency, poolBalanceCents)
	require.NoError(t, err, "failed to seed pool balance")
}

// OpenActiveAccount opens, activates and optionally funds a virtual
// account, returning its id.
func (s *TestSuite) OpenActiveAccount(t *testing.T, owner, currency string, initialBalanceCents int64) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	account, err := s.Ledger.OpenAccount(ctx, owner, currency)
	require.NoError(t, err, "failed to open account")
	require.NoError(t, s.Ledger.ActivateAccount(ctx, account.ID), "failed to activate account")

	if initialBalanceCents > 0 {
		_, err = s.Ledger.PostEntries(ctx, uuid.New(), []core.Posting{
			{AccountID: account.ID, AmountCents: initialBalanceCents},
		})
		require.NoError(t, err, "failed to fund account")
	}

	return account.ID
}

func (s *TestSuite) GetBalance(t *testing.T, accountID uuid.UUID) int64 {
	t.Helper()

	balance, _, err := s.Ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err, "failed to get balance")

	return balance
}

func (s *TestSuite) CountEntries(t *testing.T, transactionID uuid.UUID) int {
	t.Helper()

	var count int
	err := s.DB.QueryRow(
		"SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = ?",
		transactionID.String(),
	).Scan(&count)
	require.NoError(t, err, "failed to count ledger entries")

	return count
}

func (s *TestSuite) GetTransactionState(t *testing.T, id uuid.UUID) core.TransactionState {
	t.Helper()

	tx, err := s.TransactionStore.GetByID(context.Background(), id)
	require.NoError(t, err, "failed to load transaction")

	return tx.State
}
