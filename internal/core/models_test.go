package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransactionState_IsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []TransactionState{StateCompleted, StateFailed, StateExpired, StateCancelled}
	for _, s := range terminal {
		require.True(t, s.IsTerminal(), "state %s should be terminal", s)
	}

	nonTerminal := []TransactionState{
		StateInitiated, StateValidated, StateRateLocked, StateExternalRequested,
		StateChallengePending, StateChallengeAnswered, StateExternalConfirmed, StatePosting,
	}
	for _, s := range nonTerminal {
		require.False(t, s.IsTerminal(), "state %s should not be terminal", s)
	}
}

func TestTransactionState_Cancellable(t *testing.T) {
	t.Parallel()

	require.True(t, StateInitiated.Cancellable())
	require.True(t, StateValidated.Cancellable())
	require.False(t, StateExternalRequested.Cancellable())
	require.False(t, StateChallengePending.Cancellable())
	require.False(t, StateCompleted.Cancellable())
}

func TestTransactionType_RequiresExternalSettlement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		txType   TransactionType
		external bool
	}{
		{TypeDeposit, true},
		{TypeWithdrawal, true},
		{TypeInboundTransfer, true},
		{TypeOutboundTransfer, true},
		{TypeAccountCreation, true},
		{TypeInternalTransfer, false},
		{TypeExchange, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.external, tt.txType.RequiresExternalSettlement(), "type %s", tt.txType)
	}
}

func TestRateQuote_ConvertCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		customerRate string
		sourceCents  int64
		expected     int64
	}{
		{
			name:         "eur_to_hnl_with_margin",
			customerRate: "29.25",
			sourceCents:  10000, // EUR 100.00
			expected:     292500,
		},
		{
			name:         "fractional_result_rounds",
			customerRate: "0.925",
			sourceCents:  333,
			expected:     308, // 308.025 rounds down
		},
		{
			name:         "identity_rate",
			customerRate: "1",
			sourceCents:  1234,
			expected:     1234,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rate, err := decimal.NewFromString(tt.customerRate)
			require.NoError(t, err)

			quote := RateQuote{CustomerRate: rate}
			require.Equal(t, tt.expected, quote.ConvertCents(tt.sourceCents))
		})
	}
}

func TestVirtualAccount_HasSufficientFunds(t *testing.T) {
	t.Parallel()

	account := VirtualAccount{BalanceCents: 5000}
	require.True(t, account.HasSufficientFunds(5000))
	require.True(t, account.HasSufficientFunds(1))
	require.False(t, account.HasSufficientFunds(5001))
}

func TestVirtualIBAN(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	first := VirtualIBAN(id, "EUR")
	second := VirtualIBAN(id, "EUR")
	require.Equal(t, first, second, "IBAN derivation must be deterministic")
	require.Contains(t, first, "EUR")

	other := VirtualIBAN(uuid.New(), "EUR")
	require.NotEqual(t, first, other)
}
