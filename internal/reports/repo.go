package reports

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

const (
	maxMessageLen    = 1024
	defaultListLimit = 50
)

// Repository persists failure reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, report *models.FailureReport) error
	List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a failure report repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, report *models.FailureReport) error {
	report.Message = truncate(report.Message)
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := r.db.WithContext(ctx)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var rows []models.FailureReport
	err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func truncate(message string) string {
	if len(message) <= maxMessageLen {
		return message
	}
	return message[:maxMessageLen]
}
