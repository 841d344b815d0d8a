package enums

import "fmt"

// TransactionType maps to transactions.transaction_type.
type TransactionType string

const (
	TransactionTypeContribution           TransactionType = "contribution"
	TransactionTypeReferral               TransactionType = "referral"
	TransactionTypeContributionSettlement TransactionType = "contribution_settlement"
	TransactionTypeReferralSettlement     TransactionType = "referral_settlement"
	TransactionTypeManual                 TransactionType = "manual"
	TransactionTypeManualSettlement       TransactionType = "manual_settlement"
	TransactionTypeFees                   TransactionType = "fees"
	TransactionTypeUserDeposit            TransactionType = "user_deposit"
	TransactionTypeAd                     TransactionType = "ad"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeContribution,
	TransactionTypeReferral,
	TransactionTypeContributionSettlement,
	TransactionTypeReferralSettlement,
	TransactionTypeManual,
	TransactionTypeManualSettlement,
	TransactionTypeFees,
	TransactionTypeUserDeposit,
	TransactionTypeAd,
}

// IsValid reports whether the value matches the canonical transaction types.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
