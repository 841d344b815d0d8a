package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdsPayoutReport groups one monthly snapshot of payment_id balances.
type AdsPayoutReport struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (AdsPayoutReport) TableName() string { return "payout_reports_ads" }

// PotentialAdsPayment is one payment_id balance captured by an AdsPayoutReport.
type PotentialAdsPayment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PayoutReportID uuid.UUID       `gorm:"column:payout_report_id;type:uuid;not null"`
	PaymentID      string          `gorm:"column:payment_id;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(28,18);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null"`
}

func (PotentialAdsPayment) TableName() string { return "potential_payments_ads" }
