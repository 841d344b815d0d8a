package balances

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

const (
	defaultTopLimit    = 10
	defaultTotalsLimit = 100
)

// TotalsKind selects which owner earnings or payouts are summed.
type TotalsKind string

const (
	TotalsContributions TotalsKind = "contributions"
	TotalsReferrals     TotalsKind = "referrals"
)

// ParseTotalsKind validates a totals kind.
func ParseTotalsKind(value string) (TotalsKind, error) {
	switch kind := TotalsKind(value); kind {
	case TotalsContributions, TotalsReferrals:
		return kind, nil
	}
	return "", pkgerrors.Newf(pkgerrors.CodeValidation, "type must be %s or %s", TotalsContributions, TotalsReferrals)
}

var (
	earningTypes = map[TotalsKind]enums.TransactionType{
		TotalsContributions: enums.TransactionTypeContribution,
		TotalsReferrals:     enums.TransactionTypeReferral,
	}
	payoutTypes = map[TotalsKind]enums.TransactionType{
		TotalsContributions: enums.TransactionTypeContributionSettlement,
		TotalsReferrals:     enums.TransactionTypeReferralSettlement,
	}
)

// Service answers balance queries.
type Service interface {
	Balances(ctx context.Context, accounts []string, includePending bool) ([]Balance, error)
	TopBalances(ctx context.Context, accountType enums.AccountType, limit int) ([]Balance, error)
	AccountTransactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error)
	EarningsTotals(ctx context.Context, kind TotalsKind, limit int, asc bool) ([]OwnerTotal, error)
	PaidTotals(ctx context.Context, kind TotalsKind, limit int, asc bool) ([]OwnerTotal, error)
}

type service struct {
	repo Repository
}

// NewService wires a balances service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balances repository required")
	}
	return &service{repo: repo}, nil
}

// Balances returns settled balances for the accounts. With includePending,
// channel accounts also carry the value of their open votes and channels with
// no settled rows are listed with a zero settled balance.
func (s *service) Balances(ctx context.Context, accounts []string, includePending bool) ([]Balance, error) {
	if len(accounts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one account is required")
	}
	settled, err := s.repo.Settled(ctx, accounts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settled balances")
	}
	if !includePending {
		return settled, nil
	}

	pending, err := s.repo.Pending(ctx, accounts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending balances")
	}
	seen := make(map[string]bool, len(settled))
	for i := range settled {
		if settled[i].AccountType != enums.AccountTypeChannel {
			continue
		}
		seen[settled[i].AccountID] = true
		if amount, ok := pending[settled[i].AccountID]; ok {
			settled[i].Pending = amount
			settled[i].Balance = settled[i].Balance.Add(amount)
		}
	}
	for _, account := range accounts {
		amount, ok := pending[account]
		if !ok || seen[account] {
			continue
		}
		seen[account] = true
		settled = append(settled, Balance{
			AccountID:   account,
			AccountType: enums.AccountTypeChannel,
			Balance:     amount,
			Pending:     amount,
		})
	}
	return settled, nil
}

func (s *service) TopBalances(ctx context.Context, accountType enums.AccountType, limit int) ([]Balance, error) {
	if !accountType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid account type %q", accountType)
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	rows, err := s.repo.Top(ctx, accountType, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load top balances")
	}
	return rows, nil
}

func (s *service) AccountTransactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error) {
	if account == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account is required")
	}
	if txType != "" && !txType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", txType)
	}
	rows, err := s.repo.Transactions(ctx, account, txType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account transactions")
	}
	return rows, nil
}

// EarningsTotals ranks owner and channel pairs by what the owner received
// through contributions or referrals. Rows are sorted by total, largest first
// unless asc is set.
func (s *service) EarningsTotals(ctx context.Context, kind TotalsKind, limit int, asc bool) ([]OwnerTotal, error) {
	return s.ownerTotals(ctx, earningTypes, kind, true, limit, asc, "load earnings totals")
}

// PaidTotals ranks owner and channel pairs by what was settled out to the
// owner for contributions or referrals.
func (s *service) PaidTotals(ctx context.Context, kind TotalsKind, limit int, asc bool) ([]OwnerTotal, error) {
	return s.ownerTotals(ctx, payoutTypes, kind, false, limit, asc, "load paid totals")
}

func (s *service) ownerTotals(ctx context.Context, types map[TotalsKind]enums.TransactionType, kind TotalsKind, credit bool, limit int, asc bool, op string) ([]OwnerTotal, error) {
	txType, ok := types[kind]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "type must be %s or %s", TotalsContributions, TotalsReferrals)
	}
	if limit <= 0 {
		limit = defaultTotalsLimit
	}
	rows, err := s.repo.OwnerTotals(ctx, txType, credit, limit, asc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
	}
	return rows, nil
}

// Format renders an amount with the ledger's full precision.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(18)
}
