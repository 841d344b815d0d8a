package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vote accumulates attention weight for one channel, cohort and surveyor group.
type Vote struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Cohort     string              `gorm:"column:cohort;not null"`
	Tally      decimal.Decimal     `gorm:"column:tally;type:numeric(28,18);not null"`
	Excluded   bool                `gorm:"column:excluded;not null;default:false"`
	Channel    string              `gorm:"column:channel;not null"`
	SurveyorID string              `gorm:"column:surveyor_id;not null"`
	Amount     decimal.NullDecimal `gorm:"column:amount;type:numeric(28,18)"`
	Fees       decimal.NullDecimal `gorm:"column:fees;type:numeric(28,18)"`
	Transacted bool                `gorm:"column:transacted;not null;default:false"`
	CreatedAt  time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;not null"`
}

func (Vote) TableName() string { return "votes" }
