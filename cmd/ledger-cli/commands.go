package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

const timeLayout = "2006-01-02T15:04:05Z"

var errUsage = errors.New("usage")

type balanceReader interface {
	Balances(ctx context.Context, accounts []string, includePending bool) ([]balances.Balance, error)
	TopBalances(ctx context.Context, accountType enums.AccountType, limit int) ([]balances.Balance, error)
	AccountTransactions(ctx context.Context, account string, txType enums.TransactionType) ([]models.Transaction, error)
	EarningsTotals(ctx context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error)
	PaidTotals(ctx context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error)
}

type reportLister interface {
	List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error)
}

type manualWriter interface {
	InsertManual(ctx context.Context, tx *gorm.DB, manual ledger.ManualTransaction) (uuid.UUID, error)
}

type surveyorFreezer interface {
	FreezeSurveyor(ctx context.Context, surveyorID string) (votes.Result, error)
}

// app holds the services behind each subcommand.
type app struct {
	balances balanceReader
	reports  reportLister
	ledger   manualWriter
	votes    surveyorFreezer
	out      io.Writer
}

const usage = `usage: ledger-cli <command> [flags]

commands:
  balances      -account a,b [-pending]
  top           -type channel|owner|uphold|payment_id [-limit 10]
  transactions  -account X [-type contribution]
  earnings      [-type contributions|referrals] [-limit 100] [-asc]
  paid          [-type contributions|referrals] [-limit 100] [-asc]
  reports       [-kind freeze_timeout|invalid_event|frozen_surveyor_vote] [-limit 50]
  manual        -document D -to ACCOUNT [-to-type owner|channel] -amount 1.5 [-description text]
  freeze        -surveyor ID
`

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "balances":
		return a.balancesCmd(ctx, args[1:])
	case "top":
		return a.topCmd(ctx, args[1:])
	case "transactions":
		return a.transactionsCmd(ctx, args[1:])
	case "earnings":
		return a.totalsCmd(ctx, "earnings", a.balances.EarningsTotals, args[1:])
	case "paid":
		return a.totalsCmd(ctx, "paid", a.balances.PaidTotals, args[1:])
	case "reports":
		return a.reportsCmd(ctx, args[1:])
	case "manual":
		return a.manualCmd(ctx, args[1:])
	case "freeze":
		return a.freezeCmd(ctx, args[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) balancesCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("balances")
	accounts := fs.String("account", "", "comma separated account ids")
	pending := fs.Bool("pending", false, "include pending vote amounts for channels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := splitList(*accounts)
	if len(ids) == 0 {
		return fmt.Errorf("%w: -account is required", errUsage)
	}
	rows, err := a.balances.Balances(ctx, ids, *pending)
	if err != nil {
		return err
	}
	return a.writeBalances(rows, *pending)
}

func (a *app) topCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("top")
	rawType := fs.String("type", string(enums.AccountTypeChannel), "account type")
	limit := fs.Int("limit", 0, "number of accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	accountType, err := enums.ParseAccountType(*rawType)
	if err != nil {
		return err
	}
	rows, err := a.balances.TopBalances(ctx, accountType, *limit)
	if err != nil {
		return err
	}
	return a.writeBalances(rows, false)
}

func (a *app) transactionsCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("transactions")
	account := fs.String("account", "", "account id")
	rawType := fs.String("type", "", "transaction type filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*account) == "" {
		return fmt.Errorf("%w: -account is required", errUsage)
	}
	var txType enums.TransactionType
	if *rawType != "" {
		parsed, err := enums.ParseTransactionType(*rawType)
		if err != nil {
			return err
		}
		txType = parsed
	}
	rows, err := a.balances.AccountTransactions(ctx, strings.TrimSpace(*account), txType)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED_AT\tTYPE\tFROM\tTO\tAMOUNT\tDESCRIPTION")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.CreatedAt.UTC().Format(timeLayout),
			row.TransactionType,
			row.FromAccount,
			row.ToAccount,
			row.Amount.StringFixed(ledger.AltPrecision),
			row.Description,
		)
	}
	return w.Flush()
}

func (a *app) totalsCmd(ctx context.Context, name string, load func(context.Context, balances.TotalsKind, int, bool) ([]balances.OwnerTotal, error), args []string) error {
	fs := newFlagSet(name)
	rawKind := fs.String("type", string(balances.TotalsContributions), "contributions or referrals")
	limit := fs.Int("limit", 0, "number of rows")
	asc := fs.Bool("asc", false, "smallest totals first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind, err := balances.ParseTotalsKind(*rawKind)
	if err != nil {
		return err
	}
	rows, err := load(ctx, kind, *limit, *asc)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ACCOUNT\tCHANNEL\t%s\n", strings.ToUpper(name))
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.AccountID, row.Channel, row.Total.StringFixed(ledger.AltPrecision))
	}
	return w.Flush()
}

func (a *app) reportsCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("reports")
	rawKind := fs.String("kind", "", "report kind filter")
	limit := fs.Int("limit", 50, "number of reports")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind := enums.ReportKind(*rawKind)
	if kind != "" && !kind.IsValid() {
		return fmt.Errorf("unknown report kind %q", kind)
	}
	rows, err := a.reports.List(ctx, kind, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED_AT\tKIND\tSUBJECT\tMESSAGE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.CreatedAt.UTC().Format(timeLayout), row.Kind, row.Subject, row.Message)
	}
	return w.Flush()
}

func (a *app) manualCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("manual")
	document := fs.String("document", "", "document id backing the transfer")
	to := fs.String("to", "", "credited account")
	toType := fs.String("to-type", string(enums.AccountTypeOwner), "credited account type")
	amount := fs.String("amount", "", "amount in altcurrency units")
	description := fs.String("description", "", "transaction description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *document == "" || *to == "" || *amount == "" {
		return fmt.Errorf("%w: -document, -to and -amount are required", errUsage)
	}
	accountType, err := enums.ParseAccountType(*toType)
	if err != nil {
		return err
	}
	id, err := a.ledger.InsertManual(ctx, nil, ledger.ManualTransaction{
		DocumentID:  *document,
		ToAccount:   *to,
		ToType:      accountType,
		Amount:      *amount,
		Description: *description,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "manual transaction %s recorded\n", id)
	return nil
}

func (a *app) freezeCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("freeze")
	surveyor := fs.String("surveyor", "", "surveyor group id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*surveyor) == "" {
		return fmt.Errorf("%w: -surveyor is required", errUsage)
	}
	result, err := a.votes.FreezeSurveyor(ctx, strings.TrimSpace(*surveyor))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "surveyor %s frozen: %d votes mixed, %d transactions", result.SurveyorID, result.Mixed, result.Transactions)
	if len(result.SkippedChannels) > 0 {
		fmt.Fprintf(a.out, ", skipped %s", strings.Join(result.SkippedChannels, ","))
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) writeBalances(rows []balances.Balance, pending bool) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	if pending {
		fmt.Fprintln(w, "ACCOUNT\tTYPE\tBALANCE\tPENDING")
	} else {
		fmt.Fprintln(w, "ACCOUNT\tTYPE\tBALANCE")
	}
	for _, row := range rows {
		if pending {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.AccountID, row.AccountType,
				row.Balance.StringFixed(ledger.AltPrecision), row.Pending.StringFixed(ledger.AltPrecision))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.AccountID, row.AccountType, row.Balance.StringFixed(ledger.AltPrecision))
	}
	return w.Flush()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
