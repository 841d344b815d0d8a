package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplitFeeMixingArithmetic(t *testing.T) {
	gross := decimal.NewFromInt(10).Mul(decimal.RequireFromString("0.25"))
	net, fee := SplitFee(gross, decimal.RequireFromString("0.05"))

	require.True(t, net.Equal(decimal.RequireFromString("2.375")), net.String())
	require.True(t, fee.Equal(decimal.RequireFromString("0.125")), fee.String())
}

func TestSplitFeeFloorsNetAndConserves(t *testing.T) {
	splitter := NewFeeSplitter(decimal.RequireFromString("0.05"))
	gross := decimal.RequireFromString("0.000000000000000001")

	net, fee := splitter.Split(gross)
	require.True(t, net.IsZero(), "net must round down")
	require.True(t, fee.Equal(gross))

	gross = decimal.RequireFromString("1.234567890123456789")
	net, fee = splitter.Split(gross)
	require.True(t, net.Add(fee).Equal(gross))
	require.LessOrEqual(t, int(-net.Exponent()), AltPrecision)
	require.True(t, net.LessThanOrEqual(gross.Mul(decimal.RequireFromString("0.95"))))
}

func TestSplitFeeZeroRate(t *testing.T) {
	net, fee := SplitFee(decimal.RequireFromString("3.5"), decimal.Zero)
	require.True(t, net.Equal(decimal.RequireFromString("3.5")))
	require.True(t, fee.IsZero())
}

func TestProbiToAlt(t *testing.T) {
	alt, err := ProbiToAlt(AltCurrencyBAT, decimal.RequireFromString("1234567890123456789012"))
	require.NoError(t, err)
	require.Equal(t, "1234.567890123456789012", alt.String())

	_, err = ProbiToAlt("ETH", decimal.NewFromInt(1))
	require.Error(t, err)
}
