package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
)

// Repository persists ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, txn *models.Transaction) (bool, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert writes txn unless a row with the same id exists. The returned bool
// reports whether a row was created.
func (r *repository) Insert(ctx context.Context, txn *models.Transaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(txn)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error, "") {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
