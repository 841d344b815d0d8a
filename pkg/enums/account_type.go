package enums

import "fmt"

// AccountType is the kind half of an (account_id, account_type) pair.
type AccountType string

const (
	AccountTypeChannel   AccountType = "channel"
	AccountTypeOwner     AccountType = "owner"
	AccountTypeUphold    AccountType = "uphold"
	AccountTypeInternal  AccountType = "internal"
	AccountTypePaymentID AccountType = "payment_id"
)

var validAccountTypes = []AccountType{
	AccountTypeChannel,
	AccountTypeOwner,
	AccountTypeUphold,
	AccountTypeInternal,
	AccountTypePaymentID,
}

// IsValid reports whether the value matches a known account type.
func (t AccountType) IsValid() bool {
	for _, candidate := range validAccountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAccountType converts raw input into AccountType.
func ParseAccountType(value string) (AccountType, error) {
	for _, candidate := range validAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account type %q", value)
}
