package handlers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/currency"
	"github.com/angelmondragon/payoutledger/internal/ingest/payloads"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/dbtest"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type stubChecker map[string]bool

func (s stubChecker) IsChannelEligible(ctx context.Context, channel string) bool {
	eligible, ok := s[channel]
	return !ok || eligible
}

type fixture struct {
	conn       *gorm.DB
	settlement *SettlementHandler
	referral   *ReferralHandler
	ad         *AdPayoutHandler
	vote       *VoteHandler
	suggestion *SuggestionHandler
}

var processingDay = time.Date(2024, 1, 6, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T, checker stubChecker) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	logg := logger.New(logger.Options{Output: io.Discard})
	now := func() time.Time { return processingDay }

	rates, err := currency.NewStaticRates(ledger.AltCurrencyBAT, map[string]string{"USD": "0.2"})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository:        ledger.NewRepository(conn),
		DB:                client,
		Converter:         rates,
		Logger:            logg,
		SettlementAddress: "settlement-address",
		Now:               now,
	})
	require.NoError(t, err)
	votesSvc, err := votes.NewService(votes.ServiceParams{
		Repository: votes.NewRepository(conn),
		DB:         client,
		Ledger:     ledgerSvc,
		Fees:       ledger.NewFeeSplitter(decimal.RequireFromString("0.05")),
		Logger:     logg,
		Now:        now,
	})
	require.NoError(t, err)
	reporter, err := reports.NewReporter(reports.NewRepository(conn), logg)
	require.NoError(t, err)

	ledgerParams := LedgerParams{Ledger: ledgerSvc, Logger: logg, Now: now}
	tallyParams := TallyParams{
		Votes:        votesSvc,
		Eligibility:  checker,
		Reporter:     reporter,
		Logger:       logg,
		DefaultPrice: decimal.RequireFromString("0.25"),
		Now:          now,
	}

	f := &fixture{conn: conn}
	f.settlement, err = NewSettlementHandler(ledgerParams)
	require.NoError(t, err)
	f.referral, err = NewReferralHandler(ledgerParams)
	require.NoError(t, err)
	f.ad, err = NewAdPayoutHandler(ledgerParams)
	require.NoError(t, err)
	f.vote, err = NewVoteHandler(tallyParams)
	require.NoError(t, err)
	f.suggestion, err = NewSuggestionHandler(tallyParams)
	require.NoError(t, err)
	return f
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func settlementEvent() *payloads.Settlement {
	return &payloads.Settlement{
		ID:           "evt-settlement-1",
		Address:      "uphold-card-1",
		SettlementID: "settlement-1",
		Publisher:    "site.com",
		AltCurrency:  "BAT",
		Currency:     "USD",
		CreatedAt:    "2024-01-15T12:00:00Z",
		Owner:        "publishers#uuid:owner-1",
		Probi:        "9500000000000000000",
		Fees:         "500000000000000000",
		Type:         "contribution",
	}
}

func TestSettlementHandlerSkipsRedelivery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	outcome, err := f.settlement.Handle(ctx, f.conn, NewBatch(), settlementEvent())
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)
	require.EqualValues(t, 3, f.count(t, &models.Transaction{}))

	outcome, err = f.settlement.Handle(ctx, f.conn, NewBatch(), settlementEvent())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.EqualValues(t, 3, f.count(t, &models.Transaction{}))
}

func TestSettlementHandlerUsesBatchKeys(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	batch := NewBatch()

	_, err := f.settlement.Handle(ctx, f.conn, batch, settlementEvent())
	require.NoError(t, err)
	batch.Commit()

	outcome, err := f.settlement.Handle(ctx, nil, batch, settlementEvent())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
}

func TestSettlementHandlerRejectsUnknownType(t *testing.T) {
	f := newFixture(t, nil)
	event := settlementEvent()
	event.Type = "bonus"

	_, err := f.settlement.Handle(context.Background(), f.conn, NewBatch(), event)
	require.True(t, pkgerrors.IsValidation(err))
	require.Zero(t, f.count(t, &models.Transaction{}))
}

func TestReferralHandlerConvertsPayoutRate(t *testing.T) {
	f := newFixture(t, nil)
	event := &payloads.Referral{
		ID:            "evt-referral-1",
		TransactionID: "referral-tx-1",
		Publisher:     "site.com",
		Owner:         "publishers#uuid:owner-1",
		AltCurrency:   "BAT",
		CreatedAt:     "2024-02-01T00:00:00Z",
		Currency:      "USD",
		Inputs: []payloads.ReferralInput{
			{PayoutRate: "5"},
			{PayoutRate: "5"},
		},
	}

	outcome, err := f.referral.Handle(context.Background(), f.conn, NewBatch(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	var txn models.Transaction
	require.NoError(t, f.conn.First(&txn, "id = ?", ledger.ReferralID("referral-tx-1", "site.com")).Error)
	require.Equal(t, enums.TransactionTypeReferral, txn.TransactionType)
	require.True(t, txn.Amount.Equal(decimal.NewFromInt(50)))
}

func TestAdPayoutHandler(t *testing.T) {
	f := newFixture(t, nil)
	event := &payloads.AdPayout{
		ID:        "evt-ad-1",
		PaymentID: "payment-1",
		TokenID:   "token-1",
		Amount:    "1.5",
		Currency:  "BAT",
	}
	ctx := context.Background()

	outcome, err := f.ad.Handle(ctx, f.conn, NewBatch(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	outcome, err = f.ad.Handle(ctx, f.conn, NewBatch(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.EqualValues(t, 1, f.count(t, &models.Transaction{}))
}

func TestVoteHandlerTalliesIntoDailySurveyor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	batch := NewBatch()
	event := &payloads.Vote{
		ID:            "evt-vote-1",
		Channel:       "site.com",
		BaseVoteValue: "0.25",
		VoteTally:     2,
		FundingSource: "uphold",
	}

	for i := 0; i < 2; i++ {
		outcome, err := f.vote.Handle(ctx, f.conn, batch, event)
		require.NoError(t, err)
		require.Equal(t, OutcomeProcessed, outcome)
		batch.Commit()
	}

	var group models.SurveyorGroup
	require.NoError(t, f.conn.First(&group, "id = ?", "2024-01-06_uphold").Error)
	require.True(t, group.Virtual)
	require.True(t, group.Price.Equal(decimal.RequireFromString("0.25")))

	var vote models.Vote
	require.NoError(t, f.conn.First(&vote, "id = ?", ledger.VotesID("site.com", "control", "2024-01-06_uphold")).Error)
	require.True(t, vote.Tally.Equal(decimal.NewFromInt(4)))
}

func TestVoteHandlerSkipsIneligibleChannel(t *testing.T) {
	f := newFixture(t, stubChecker{"blocked.com": false})
	outcome, err := f.vote.Handle(context.Background(), f.conn, NewBatch(), &payloads.Vote{
		ID:            "evt-vote-2",
		Channel:       "blocked.com",
		BaseVoteValue: "0.25",
		VoteTally:     1,
		FundingSource: "uphold",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Zero(t, f.count(t, &models.Vote{}))
}

func TestVoteHandlerReportsFrozenSurveyor(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.conn.Create(&models.SurveyorGroup{
		ID:        "2024-01-06_uphold",
		Price:     decimal.RequireFromString("0.25"),
		Frozen:    true,
		Virtual:   true,
		CreatedAt: processingDay,
		UpdatedAt: processingDay,
	}).Error)

	outcome, err := f.vote.Handle(context.Background(), f.conn, NewBatch(), &payloads.Vote{
		ID:            "evt-vote-3",
		Channel:       "site.com",
		BaseVoteValue: "0.25",
		VoteTally:     1,
		FundingSource: "uphold",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Zero(t, f.count(t, &models.Vote{}))

	var report models.FailureReport
	require.NoError(t, f.conn.First(&report).Error)
	require.Equal(t, enums.ReportKindFrozenSurveyorVote, report.Kind)
	require.Equal(t, "2024-01-06_uphold", report.Subject)
}

func TestSuggestionHandlerSplitsFunding(t *testing.T) {
	f := newFixture(t, nil)
	outcome, err := f.suggestion.Handle(context.Background(), f.conn, NewBatch(), &payloads.Suggestion{
		ID:      "evt-suggestion-1",
		Channel: "site.com",
		Funding: []payloads.Funding{
			{Type: "ugp", Amount: "10", Promotion: "promotion-1"},
			{Type: "ads", Amount: "0.5", Promotion: "promotion-2"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	var groups []models.SurveyorGroup
	require.NoError(t, f.conn.Order("id").Find(&groups).Error)
	require.Len(t, groups, 2)
	require.False(t, groups[0].Virtual)

	var grant models.Vote
	require.NoError(t, f.conn.First(&grant, "id = ?", ledger.VotesID("site.com", "ugp", "promotion-1")).Error)
	require.True(t, grant.Tally.Equal(decimal.NewFromInt(40)))
	var ads models.Vote
	require.NoError(t, f.conn.First(&ads, "id = ?", ledger.VotesID("site.com", "ads", "promotion-2")).Error)
	require.True(t, ads.Tally.Equal(decimal.NewFromInt(2)))
}

func TestHandlersRejectForeignPayloads(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.vote.Handle(context.Background(), f.conn, NewBatch(), &payloads.Settlement{})
	require.True(t, pkgerrors.IsValidation(err))
	_, err = f.ad.Handle(context.Background(), f.conn, NewBatch(), &payloads.Vote{})
	require.True(t, pkgerrors.IsValidation(err))
}

func TestBatchDiscardDropsStagedKeys(t *testing.T) {
	batch := NewBatch()
	batch.Mark("tx:a")
	batch.MarkSurveyor("surveyor:s", false)
	require.True(t, batch.Handled("tx:a"))
	batch.Discard()
	require.False(t, batch.Handled("tx:a"))
	_, ok := batch.Surveyor("surveyor:s")
	require.False(t, ok)

	batch.Mark("tx:b")
	batch.MarkSurveyor("surveyor:s", true)
	batch.Commit()
	require.True(t, batch.Handled("tx:b"))
	frozen, ok := batch.Surveyor("surveyor:s")
	require.True(t, ok)
	require.True(t, frozen)
}
