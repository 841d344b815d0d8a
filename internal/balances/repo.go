package balances

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// Balance is the derived position of one account.
type Balance struct {
	AccountID   string            `gorm:"column:account_id"`
	AccountType enums.AccountType `gorm:"column:account_type"`
	Balance     decimal.Decimal   `gorm:"column:balance"`
	Pending     decimal.Decimal   `gorm:"-"`
}

// OwnerTotal is the sum an owner earned or was paid for one channel.
type OwnerTotal struct {
	Channel   string          `gorm:"column:channel"`
	AccountID string          `gorm:"column:account_id"`
	Total     decimal.Decimal `gorm:"column:total"`
}

type channelPending struct {
	Channel string          `gorm:"column:channel"`
	Amount  decimal.Decimal `gorm:"column:amount"`
}

// Repository reads balances derived from the transactions table.
type Repository interface {
	Settled(ctx context.Context, accounts []string) ([]Balance, error)
	Pending(ctx context.Context, channels []string) (map[string]decimal.Decimal, error)
	Top(ctx context.Context, accountType enums.AccountType, limit int) ([]Balance, error)
	Transactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error)
	OwnerTotals(ctx context.Context, txType enums.TransactionType, credit bool, limit int, asc bool) ([]OwnerTotal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balances repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Settled sums every transaction touching the accounts, crediting to_account
// and debiting from_account.
func (r *repository) Settled(ctx context.Context, accounts []string) ([]Balance, error) {
	var rows []Balance
	err := r.db.WithContext(ctx).
		Table("account_balances").
		Select("account_id, account_type, balance").
		Where("account_id IN ?", accounts).
		Order("account_id ASC, account_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Pending values the untransacted, non-excluded votes of open surveyor groups.
func (r *repository) Pending(ctx context.Context, channels []string) (map[string]decimal.Decimal, error) {
	var rows []channelPending
	err := r.db.WithContext(ctx).
		Table("votes").
		Select("votes.channel AS channel, SUM(votes.tally * surveyor_groups.price) AS amount").
		Joins("JOIN surveyor_groups ON surveyor_groups.id = votes.surveyor_id").
		Where("NOT votes.excluded AND NOT votes.transacted AND NOT surveyor_groups.frozen").
		Where("votes.channel IN ?", channels).
		Group("votes.channel").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	pending := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		pending[row.Channel] = row.Amount
	}
	return pending, nil
}

func (r *repository) Top(ctx context.Context, accountType enums.AccountType, limit int) ([]Balance, error) {
	var rows []Balance
	err := r.db.WithContext(ctx).
		Table("account_balances").
		Select("account_id, account_type, balance").
		Where("account_type = ?", accountType).
		Order("balance DESC, account_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Transactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("from_account = ? OR to_account = ?", account, account)
	if txType != "" {
		query = query.Where("transaction_type = ?", txType)
	}
	var rows []models.Transaction
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// OwnerTotals sums the signed movements of owner accounts for one transaction
// type, per owner and channel. With credit the sum counts money received,
// otherwise money sent.
func (r *repository) OwnerTotals(ctx context.Context, txType enums.TransactionType, credit bool, limit int, asc bool) ([]OwnerTotal, error) {
	total := "SUM(amount)"
	if !credit {
		total = "SUM(-amount)"
	}
	order := "DESC"
	if asc {
		order = "ASC"
	}
	query := "SELECT COALESCE(channel, '') AS channel, account_id, " + total + " AS total FROM (" +
		"SELECT channel, to_account AS account_id, amount FROM transactions " +
		"WHERE to_account_type = ? AND transaction_type = ? " +
		"UNION ALL " +
		"SELECT channel, from_account AS account_id, -amount AS amount FROM transactions " +
		"WHERE from_account_type = ? AND transaction_type = ?" +
		") entries GROUP BY account_id, channel " +
		"ORDER BY total " + order + ", account_id ASC, channel ASC LIMIT ?"

	var rows []OwnerTotal
	err := r.db.WithContext(ctx).
		Raw(query, enums.AccountTypeOwner, txType, enums.AccountTypeOwner, txType, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
