package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

type fakeServices struct {
	accounts []string
	pending  bool
	topType  enums.AccountType
	topLimit int
	manual   ledger.ManualTransaction
	frozen   string
	kind     enums.ReportKind
	totals   string
	asc      bool
}

func (f *fakeServices) Balances(_ context.Context, accounts []string, includePending bool) ([]balances.Balance, error) {
	f.accounts = accounts
	f.pending = includePending
	return []balances.Balance{{
		AccountID:   "site.com",
		AccountType: enums.AccountTypeChannel,
		Balance:     decimal.RequireFromString("1.5"),
		Pending:     decimal.RequireFromString("0.25"),
	}}, nil
}

func (f *fakeServices) TopBalances(_ context.Context, accountType enums.AccountType, limit int) ([]balances.Balance, error) {
	f.topType = accountType
	f.topLimit = limit
	return nil, nil
}

func (f *fakeServices) AccountTransactions(_ context.Context, account string, _ enums.TransactionType) ([]models.Transaction, error) {
	return []models.Transaction{{
		ID:              uuid.New(),
		CreatedAt:       time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Description:     "votes from 2024-01-05_uphold",
		TransactionType: enums.TransactionTypeContribution,
		FromAccount:     "settlement-address",
		ToAccount:       account,
		Amount:          decimal.RequireFromString("2"),
	}}, nil
}

func (f *fakeServices) EarningsTotals(_ context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error) {
	f.totals, f.asc = "earnings:"+string(kind), asc
	return []balances.OwnerTotal{{Channel: "site.com", AccountID: "owner-1", Total: decimal.RequireFromString("10")}}, nil
}

func (f *fakeServices) PaidTotals(_ context.Context, kind balances.TotalsKind, limit int, asc bool) ([]balances.OwnerTotal, error) {
	f.totals, f.asc = "paid:"+string(kind), asc
	return []balances.OwnerTotal{{Channel: "site.com", AccountID: "owner-1", Total: decimal.RequireFromString("9.5")}}, nil
}

func (f *fakeServices) List(_ context.Context, kind enums.ReportKind, _ int) ([]models.FailureReport, error) {
	f.kind = kind
	return []models.FailureReport{{Kind: enums.ReportKindFreezeTimeout, Subject: "2024-01-05_uphold", Message: "votes still pending"}}, nil
}

func (f *fakeServices) InsertManual(_ context.Context, _ *gorm.DB, manual ledger.ManualTransaction) (uuid.UUID, error) {
	f.manual = manual
	return ledger.ManualTransactionID(manual.DocumentID, manual.ToAccount), nil
}

func (f *fakeServices) FreezeSurveyor(_ context.Context, surveyorID string) (votes.Result, error) {
	f.frozen = surveyorID
	return votes.Result{SurveyorID: surveyorID, Mixed: 3, Transactions: 2}, nil
}

func newTestApp() (*app, *fakeServices, *bytes.Buffer) {
	fake := &fakeServices{}
	out := &bytes.Buffer{}
	return &app{balances: fake, reports: fake, ledger: fake, votes: fake, out: out}, fake, out
}

func TestBalancesCommand(t *testing.T) {
	cli, fake, out := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{"balances", "-account", "site.com, owner-1", "-pending"}))
	require.Equal(t, []string{"site.com", "owner-1"}, fake.accounts)
	require.True(t, fake.pending)
	require.Contains(t, out.String(), "1.500000000000000000")
	require.Contains(t, out.String(), "0.250000000000000000")
}

func TestBalancesCommandRequiresAccount(t *testing.T) {
	cli, _, _ := newTestApp()
	err := cli.run(context.Background(), []string{"balances"})
	require.True(t, errors.Is(err, errUsage))
}

func TestTopCommandParsesType(t *testing.T) {
	cli, fake, _ := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{"top", "-type", "owner", "-limit", "3"}))
	require.Equal(t, enums.AccountTypeOwner, fake.topType)
	require.Equal(t, 3, fake.topLimit)

	require.Error(t, cli.run(context.Background(), []string{"top", "-type", "wallet"}))
}

func TestOwnerTotalsCommands(t *testing.T) {
	cli, fake, out := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{"earnings", "-type", "referrals", "-asc"}))
	require.Equal(t, "earnings:referrals", fake.totals)
	require.True(t, fake.asc)
	require.Contains(t, out.String(), "EARNINGS")
	require.Contains(t, out.String(), "10.000000000000000000")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"paid"}))
	require.Equal(t, "paid:contributions", fake.totals)
	require.False(t, fake.asc)
	require.Contains(t, out.String(), "9.500000000000000000")

	require.Error(t, cli.run(context.Background(), []string{"paid", "-type", "ads"}))
}

func TestTransactionsAndReportsCommands(t *testing.T) {
	cli, fake, out := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{"transactions", "-account", "site.com", "-type", "contribution"}))
	require.Contains(t, out.String(), "2.000000000000000000")
	require.Contains(t, out.String(), "2024-01-05T00:00:00Z")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"reports", "-kind", "freeze_timeout"}))
	require.Equal(t, enums.ReportKindFreezeTimeout, fake.kind)
	require.Contains(t, out.String(), "votes still pending")

	require.Error(t, cli.run(context.Background(), []string{"reports", "-kind", "bogus"}))
}

func TestManualCommand(t *testing.T) {
	cli, fake, out := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{
		"manual", "-document", "doc-1", "-to", "publishers#uuid:owner-1", "-amount", "12.5",
	}))
	require.Equal(t, "doc-1", fake.manual.DocumentID)
	require.Equal(t, enums.AccountTypeOwner, fake.manual.ToType)
	require.Equal(t, "12.5", fake.manual.Amount)
	require.True(t, strings.HasPrefix(out.String(), "manual transaction "))

	err := cli.run(context.Background(), []string{"manual", "-document", "doc-1"})
	require.True(t, errors.Is(err, errUsage))
}

func TestFreezeCommand(t *testing.T) {
	cli, fake, out := newTestApp()
	require.NoError(t, cli.run(context.Background(), []string{"freeze", "-surveyor", "promo-1"}))
	require.Equal(t, "promo-1", fake.frozen)
	require.Contains(t, out.String(), "3 votes mixed, 2 transactions")
}

func TestUnknownCommand(t *testing.T) {
	cli, _, _ := newTestApp()
	require.True(t, errors.Is(cli.run(context.Background(), []string{"nope"}), errUsage))
	require.True(t, errors.Is(cli.run(context.Background(), nil), errUsage))
}
