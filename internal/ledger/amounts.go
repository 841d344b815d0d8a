package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

// AltCurrencyBAT is the only altcurrency the ledger accepts.
const AltCurrencyBAT = "BAT"

// probiExponent is log10 of probi per unit for BAT.
const probiExponent = 18

// ProbiToAlt converts an integer probi amount to units of altcurrency.
func ProbiToAlt(altcurrency string, probi decimal.Decimal) (decimal.Decimal, error) {
	if altcurrency != AltCurrencyBAT {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported altcurrency %q", altcurrency)
	}
	return probi.Shift(-probiExponent), nil
}

// ParseAmount parses a required decimal string.
func ParseAmount(field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", field)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" is not a decimal")
	}
	return parsed, nil
}

// ParseOptionalAmount parses a decimal string, treating empty as zero.
func ParseOptionalAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(field, value)
}
