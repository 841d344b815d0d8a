package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// Transaction is an immutable ledger entry moving Amount from one account to another.
type Transaction struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CreatedAt          time.Time             `gorm:"column:created_at;not null"`
	Description        string                `gorm:"column:description;not null"`
	TransactionType    enums.TransactionType `gorm:"column:transaction_type;not null"`
	DocumentID         string                `gorm:"column:document_id"`
	FromAccount        string                `gorm:"column:from_account;not null"`
	FromAccountType    enums.AccountType     `gorm:"column:from_account_type;not null"`
	ToAccount          string                `gorm:"column:to_account;not null"`
	ToAccountType      enums.AccountType     `gorm:"column:to_account_type;not null"`
	Amount             decimal.Decimal       `gorm:"column:amount;type:numeric(28,18);not null"`
	SettlementCurrency *string               `gorm:"column:settlement_currency"`
	SettlementAmount   decimal.NullDecimal   `gorm:"column:settlement_amount;type:numeric(28,18)"`
	Channel            *string               `gorm:"column:channel"`
}

func (Transaction) TableName() string { return "transactions" }
