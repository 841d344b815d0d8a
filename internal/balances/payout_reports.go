package balances

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// PayoutReportRepository snapshots payment_id balances for ads payouts.
type PayoutReportRepository interface {
	CreateAdsReport(ctx context.Context, tx *gorm.DB, at time.Time) (*models.AdsPayoutReport, int, error)
	AdsReportPayments(ctx context.Context, reportID uuid.UUID) ([]models.PotentialAdsPayment, error)
}

type payoutReportRepository struct {
	db *gorm.DB
}

// NewPayoutReportRepository binds the payout report queries to db.
func NewPayoutReportRepository(db *gorm.DB) PayoutReportRepository {
	return &payoutReportRepository{db: db}
}

func (r *payoutReportRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// CreateAdsReport stores a report row and one potential payment per
// payment_id account with a positive balance.
func (r *payoutReportRepository) CreateAdsReport(ctx context.Context, tx *gorm.DB, at time.Time) (*models.AdsPayoutReport, int, error) {
	conn := r.conn(ctx, tx)
	report := &models.AdsPayoutReport{ID: uuid.New(), CreatedAt: at.UTC()}
	if err := conn.Create(report).Error; err != nil {
		return nil, 0, err
	}

	var owed []Balance
	err := conn.
		Table("account_balances").
		Select("account_id, account_type, balance").
		Where("account_type = ? AND balance > 0", enums.AccountTypePaymentID).
		Order("account_id ASC").
		Scan(&owed).Error
	if err != nil {
		return nil, 0, err
	}
	if len(owed) == 0 {
		return report, 0, nil
	}

	payments := make([]models.PotentialAdsPayment, 0, len(owed))
	for _, row := range owed {
		payments = append(payments, models.PotentialAdsPayment{
			ID:             uuid.New(),
			PayoutReportID: report.ID,
			PaymentID:      row.AccountID,
			Amount:         row.Balance,
			CreatedAt:      report.CreatedAt,
		})
	}
	if err := conn.CreateInBatches(payments, 500).Error; err != nil {
		return nil, 0, err
	}
	return report, len(payments), nil
}

func (r *payoutReportRepository) AdsReportPayments(ctx context.Context, reportID uuid.UUID) ([]models.PotentialAdsPayment, error) {
	var rows []models.PotentialAdsPayment
	err := r.db.WithContext(ctx).
		Where("payout_report_id = ?", reportID).
		Order("payment_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
