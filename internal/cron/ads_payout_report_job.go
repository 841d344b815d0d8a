package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type adsPayoutReportRepo interface {
	CreateAdsReport(ctx context.Context, tx *gorm.DB, at time.Time) (*models.AdsPayoutReport, int, error)
}

type AdsPayoutReportJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository adsPayoutReportRepo
}

// NewAdsPayoutReportJob snapshots ads wallet balances into a payout report.
func NewAdsPayoutReportJob(params AdsPayoutReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("payout report repository required")
	}
	return &adsPayoutReportJob{
		logg: params.Logger,
		db:   params.DB,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type adsPayoutReportJob struct {
	logg *logger.Logger
	db   txRunner
	repo adsPayoutReportRepo
	now  func() time.Time
}

func (j *adsPayoutReportJob) Name() string { return "ads-payout-report" }

func (j *adsPayoutReportJob) Run(ctx context.Context) error {
	var (
		report   *models.AdsPayoutReport
		payments int
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		report, payments, err = j.repo.CreateAdsReport(ctx, tx, j.now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("ads payout report: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"payout_report_id": report.ID.String(),
		"payments":         payments,
	}), "ads payout report created")
	return nil
}
