package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

func TestFiatToAltUnits(t *testing.T) {
	rates, err := NewStaticRates("BAT", map[string]string{"usd": "0.2", "EUR": "0.3"})
	require.NoError(t, err)
	ctx := context.Background()

	got, err := rates.FiatToAltUnits(ctx, "USD", decimal.RequireFromString("5"), "BAT")
	require.NoError(t, err)
	require.Equal(t, "25", got.String())

	got, err = rates.FiatToAltUnits(ctx, "EUR", decimal.NewFromInt(1), "BAT")
	require.NoError(t, err)
	require.Equal(t, "3.333333333333333333", got.String())

	got, err = rates.FiatToAltUnits(ctx, "BAT", decimal.NewFromInt(7), "BAT")
	require.NoError(t, err)
	require.Equal(t, "7", got.String())

	_, err = rates.FiatToAltUnits(ctx, "JPY", decimal.NewFromInt(1), "BAT")
	require.True(t, pkgerrors.IsValidation(err))
	_, err = rates.FiatToAltUnits(ctx, "USD", decimal.NewFromInt(1), "ETH")
	require.True(t, pkgerrors.IsValidation(err))
}

func TestNewStaticRatesRejectsBadRates(t *testing.T) {
	_, err := NewStaticRates("BAT", map[string]string{"USD": "abc"})
	require.Error(t, err)
	_, err = NewStaticRates("BAT", map[string]string{"USD": "0"})
	require.Error(t, err)
}
