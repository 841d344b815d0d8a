package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutledger/api/responses"
	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const maxTopLimit = 1000

type totalsFunc func(ctx context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error)

type balanceReader interface {
	Balances(ctx context.Context, accounts []string, includePending bool) ([]balances.Balance, error)
	TopBalances(ctx context.Context, accountType enums.AccountType, limit int) ([]balances.Balance, error)
	AccountTransactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error)
	EarningsTotals(ctx context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error)
	PaidTotals(ctx context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error)
}

type earningsView struct {
	Channel   string `json:"channel"`
	Earnings  string `json:"earnings"`
	AccountID string `json:"account_id"`
}

type paidView struct {
	Channel   string `json:"channel"`
	Paid      string `json:"paid"`
	AccountID string `json:"account_id"`
}

type balanceView struct {
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type"`
	Balance     string `json:"balance"`
	Pending     string `json:"pending,omitempty"`
}

type transactionView struct {
	ID              string `json:"id"`
	CreatedAt       string `json:"created_at"`
	Description     string `json:"description"`
	TransactionType string `json:"transaction_type"`
	DocumentID      string `json:"document_id,omitempty"`
	FromAccount     string `json:"from_account"`
	ToAccount       string `json:"to_account"`
	Amount          string `json:"amount"`
	Channel         string `json:"channel,omitempty"`
}

// AccountBalances answers GET /accounts/balances?account=a&account=b&pending=true.
func AccountBalances(svc balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accounts := queryList(r, "account")
		if len(accounts) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one account is required"))
			return
		}
		pending, _ := strconv.ParseBool(r.URL.Query().Get("pending"))

		rows, err := svc.Balances(ctx, accounts, pending)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceViews(rows, pending))
	}
}

// TopBalances answers GET /accounts/top?type=channel&limit=10.
func TopBalances(svc balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountType, err := enums.ParseAccountType(strings.TrimSpace(r.URL.Query().Get("type")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account type"))
			return
		}
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 || limit > maxTopLimit {
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "limit must be between 1 and %d", maxTopLimit))
				return
			}
		}

		rows, err := svc.TopBalances(ctx, accountType, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceViews(rows, false))
	}
}

// AccountTransactions answers GET /accounts/{account}/transactions?type=contribution.
func AccountTransactions(svc balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account := strings.TrimSpace(chi.URLParam(r, "account"))
		if account == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "account is required"))
			return
		}
		var txType enums.TransactionType
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			parsed, err := enums.ParseTransactionType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
			txType = parsed
		}

		rows, err := svc.AccountTransactions(ctx, account, txType)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]transactionView, 0, len(rows))
		for _, row := range rows {
			views = append(views, transactionView{
				ID:              row.ID.String(),
				CreatedAt:       row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
				Description:     row.Description,
				TransactionType: string(row.TransactionType),
				DocumentID:      row.DocumentID,
				FromAccount:     row.FromAccount,
				ToAccount:       row.ToAccount,
				Amount:          formatAmount(row.Amount),
			})
			if row.Channel != nil {
				views[len(views)-1].Channel = *row.Channel
			}
		}
		responses.WriteSuccess(w, views)
	}
}

// EarningsTotals answers GET /accounts/earnings/{type}/total?order=asc&limit=100.
func EarningsTotals(svc balanceReader, logg *logger.Logger) http.HandlerFunc {
	return ownerTotals(svc.EarningsTotals, logg, func(row balances.OwnerTotal) any {
		return earningsView{Channel: row.Channel, Earnings: formatAmount(row.Total), AccountID: row.AccountID}
	})
}

// PaidTotals answers GET /accounts/settlements/{type}/total?order=asc&limit=100.
func PaidTotals(svc balanceReader, logg *logger.Logger) http.HandlerFunc {
	return ownerTotals(svc.PaidTotals, logg, func(row balances.OwnerTotal) any {
		return paidView{Channel: row.Channel, Paid: formatAmount(row.Total), AccountID: row.AccountID}
	})
}

func ownerTotals(load totalsFunc, logg *logger.Logger, view func(balances.OwnerTotal) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, err := balances.ParseTotalsKind(chi.URLParam(r, "type"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query := r.URL.Query()
		order := strings.TrimSpace(query.Get("order"))
		if order != "" && order != "asc" && order != "desc" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order must be asc or desc"))
			return
		}
		limit := 0
		if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 || limit > maxTopLimit {
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "limit must be between 1 and %d", maxTopLimit))
				return
			}
		}

		rows, err := load(ctx, kind, limit, order == "asc")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]any, 0, len(rows))
		for _, row := range rows {
			views = append(views, view(row))
		}
		responses.WriteSuccess(w, views)
	}
}

func balanceViews(rows []balances.Balance, pending bool) []balanceView {
	views := make([]balanceView, 0, len(rows))
	for _, row := range rows {
		view := balanceView{
			AccountID:   row.AccountID,
			AccountType: string(row.AccountType),
			Balance:     formatAmount(row.Balance),
		}
		if pending {
			view.Pending = formatAmount(row.Pending)
		}
		views = append(views, view)
	}
	return views
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(ledger.AltPrecision)
}

func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
