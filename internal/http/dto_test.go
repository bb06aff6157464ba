package http

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"remit/internal/core"
)

func TestParseAmountToCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		amount        string
		expected      int64
		expectedError bool
	}{
		{
			name:     "whole_number",
			amount:   "100",
			expected: 10000,
		},
		{
			name:     "decimal_with_one_place",
			amount:   "14.5",
			expected: 1450,
		},
		{
			name:     "decimal_with_two_places",
			amount:   "2925.00",
			expected: 292500,
		},
		{
			name:     "zero",
			amount:   "0",
			expected: 0,
		},
		{
			name:     "small_amount",
			amount:   "0.01",
			expected: 1,
		},
		{
			name:     "amount_with_spaces",
			amount:   "  100.50  ",
			expected: 10050,
		},
		{
			name:          "three_decimal_places",
			amount:        "1.005",
			expectedError: true,
		},
		{
			name:          "negative",
			amount:        "-10.00",
			expectedError: true,
		},
		{
			name:          "empty",
			amount:        "",
			expectedError: true,
		},
		{
			name:          "not_a_number",
			amount:        "ten",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cents, err := ParseAmountToCents(tt.amount)
			if tt.expectedError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expected, cents)
		})
	}
}

func TestFormatCents(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2925.00", FormatCents(292500))
	require.Equal(t, "0.01", FormatCents(1))
	require.Equal(t, "0.00", FormatCents(0))
	require.Equal(t, "-40.00", FormatCents(-4000))
}

func TestInitiateTransactionRequest_ToDomain(t *testing.T) {
	t.Parallel()

	from := uuid.New()
	to := uuid.New()

	req := InitiateTransactionRequest{
		Type:           string(core.TypeExchange),
		FromAccountID:  from.String(),
		ToAccountID:    to.String(),
		Amount:         "100.00",
		Currency:       "EUR",
		TargetCurrency: "HNL",
	}

	domain, err := req.ToDomain("idem-1")
	require.NoError(t, err)
	require.Equal(t, core.TypeExchange, domain.Type)
	require.Equal(t, int64(10000), domain.AmountCents)
	require.Equal(t, "EUR", domain.Currency)
	require.Equal(t, "HNL", domain.TargetCurrency)
	require.Equal(t, "idem-1", domain.IdempotencyKey)
	require.NotNil(t, domain.FromAccountID)
	require.Equal(t, from, *domain.FromAccountID)
	require.NotNil(t, domain.ToAccountID)
	require.Equal(t, to, *domain.ToAccountID)
}

func TestInitiateTransactionRequest_ToDomain_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  InitiateTransactionRequest
	}{
		{
			name: "bad_amount",
			req: InitiateTransactionRequest{
				Type:     string(core.TypeDeposit),
				Amount:   "10.005",
				Currency: "EUR",
			},
		},
		{
			name: "bad_from_account_id",
			req: InitiateTransactionRequest{
				Type:          string(core.TypeInternalTransfer),
				FromAccountID: "not-a-uuid",
				Amount:        "10.00",
				Currency:      "EUR",
			},
		},
		{
			name: "bad_to_account_id",
			req: InitiateTransactionRequest{
				Type:        string(core.TypeInternalTransfer),
				ToAccountID: "not-a-uuid",
				Amount:      "10.00",
				Currency:    "EUR",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.req.ToDomain("")
			require.Error(t, err)
		})
	}
}

func TestToTransactionResponse(t *testing.T) {
	t.Parallel()

	from := uuid.New()
	rate := decimal.RequireFromString("29.25")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tx := core.Transaction{
		ID:                uuid.New(),
		Type:              core.TypeExchange,
		State:             core.StateCompleted,
		FromAccountID:     &from,
		SourceCurrency:    "EUR",
		TargetCurrency:    "HNL",
		SourceAmountCents: 10000,
		TargetAmountCents: 292500,
		AppliedRate:       &rate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	resp := toTransactionResponse(tx)
	require.Equal(t, "100.00", resp.SourceAmount)
	require.Equal(t, "2925.00", resp.TargetAmount)
	require.Equal(t, "29.25", resp.AppliedRate)
	require.Equal(t, from.String(), resp.FromAccountID)
	require.Empty(t, resp.ToAccountID)
	require.Equal(t, "2026-03-01T12:00:00Z", resp.CreatedAt)
}
