package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SurveyorGroup prices a batch of votes uniformly until it is frozen.
type SurveyorGroup struct {
	ID        string          `gorm:"column:id;primaryKey"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(28,18);not null"`
	Frozen    bool            `gorm:"column:frozen;not null;default:false"`
	Virtual   bool            `gorm:"column:virtual;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}

func (SurveyorGroup) TableName() string { return "surveyor_groups" }
