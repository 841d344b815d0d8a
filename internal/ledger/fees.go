package ledger

import "github.com/shopspring/decimal"

// AltPrecision is the number of fractional digits carried by ledger amounts.
const AltPrecision = 18

// SplitFee divides gross into (net, fee) at the given rate. Net is floored at
// AltPrecision digits and fee takes the remainder, so net+fee == gross and
// payout is never overstated.
func SplitFee(gross, rate decimal.Decimal) (net decimal.Decimal, fee decimal.Decimal) {
	net = gross.Mul(decimal.NewFromInt(1).Sub(rate)).RoundFloor(AltPrecision)
	fee = gross.Sub(net)
	return net, fee
}

// FeeSplitter applies a fixed fee rate.
type FeeSplitter struct {
	rate decimal.Decimal
}

// NewFeeSplitter returns a splitter for rate in [0, 1).
func NewFeeSplitter(rate decimal.Decimal) FeeSplitter {
	return FeeSplitter{rate: rate}
}

// Rate returns the configured fee rate.
func (f FeeSplitter) Rate() decimal.Decimal {
	return f.rate
}

// Split divides gross into (net, fee).
func (f FeeSplitter) Split(gross decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return SplitFee(gross, f.rate)
}
