package enums

import "fmt"

// SettlementType discriminates settlement payout events.
type SettlementType string

const (
	SettlementTypeContribution SettlementType = "contribution"
	SettlementTypeReferral     SettlementType = "referral"
	SettlementTypeManual       SettlementType = "manual"
)

var settlementTransactionTypes = map[SettlementType]TransactionType{
	SettlementTypeContribution: TransactionTypeContributionSettlement,
	SettlementTypeReferral:     TransactionTypeReferralSettlement,
	SettlementTypeManual:       TransactionTypeManualSettlement,
}

// IsValid reports whether the value is a supported settlement type.
func (t SettlementType) IsValid() bool {
	_, ok := settlementTransactionTypes[t]
	return ok
}

// TransactionType returns the "{type}_settlement" transaction type for the payout leg.
func (t SettlementType) TransactionType() TransactionType {
	return settlementTransactionTypes[t]
}

// ParseSettlementType converts raw input into SettlementType.
func ParseSettlementType(value string) (SettlementType, error) {
	candidate := SettlementType(value)
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid settlement type %q", value)
}
