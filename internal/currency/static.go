// Package currency converts fiat amounts into altcurrency units from a fixed
// table of rates.
package currency

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

// StaticRates prices one alt unit in each configured fiat currency.
type StaticRates struct {
	altcurrency string
	rates       map[string]decimal.Decimal
}

// NewStaticRates parses rates such as {"USD": "0.2"}, meaning one alt unit is
// worth 0.2 USD.
func NewStaticRates(altcurrency string, rates map[string]string) (*StaticRates, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for code, raw := range rates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse rate for "+code)
		}
		if !rate.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "rate for %s must be positive", code)
		}
		parsed[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return &StaticRates{altcurrency: altcurrency, rates: parsed}, nil
}

// FiatToAltUnits converts amount of currency into altcurrency units, rounded
// down at 18 fractional digits.
func (s *StaticRates) FiatToAltUnits(ctx context.Context, currency string, amount decimal.Decimal, altcurrency string) (decimal.Decimal, error) {
	if altcurrency != s.altcurrency {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported altcurrency %q", altcurrency)
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == altcurrency {
		return amount, nil
	}
	rate, ok := s.rates[code]
	if !ok {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "no rate for currency %q", currency)
	}
	return amount.DivRound(rate, 19).RoundFloor(18), nil
}
