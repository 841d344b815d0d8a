package votes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/dbtest"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

const settlementAddress = "settlement-address"

type fixture struct {
	conn  *gorm.DB
	svc   Service
	clock *fakeClock
}

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepository(t, nil)
}

func newFixtureWithRepository(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	clock := &fakeClock{now: time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC)}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository:        ledger.NewRepository(conn),
		DB:                client,
		SettlementAddress: settlementAddress,
	})
	require.NoError(t, err)

	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(ServiceParams{
		Repository:     repo,
		DB:             client,
		Ledger:         ledgerSvc,
		Fees:           ledger.NewFeeSplitter(decimal.RequireFromString("0.05")),
		TestingCohorts: []string{"test"},
		PollInterval:   5 * time.Second,
		WaitTimeout:    time.Minute,
		Now:            clock.Now,
		Sleep:          clock.Sleep,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, clock: clock}
}

func (f *fixture) vote(t *testing.T, surveyorID, channel, cohort, weight string) {
	t.Helper()
	_, err := f.svc.EnsureSurveyor(context.Background(), nil, Surveyor{
		ID:        surveyorID,
		Price:     decimal.RequireFromString("0.25"),
		Virtual:   true,
		CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddVote(context.Background(), nil, Tally{
		SurveyorID: surveyorID,
		Channel:    channel,
		Cohort:     cohort,
		Weight:     decimal.RequireFromString(weight),
	}))
}

func (f *fixture) transactions(t *testing.T) []models.Transaction {
	t.Helper()
	var rows []models.Transaction
	require.NoError(t, f.conn.Order("to_account ASC").Find(&rows).Error)
	return rows
}

func TestEndToEndVotesBecomeOneContribution(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 51; i++ {
		f.vote(t, "2024-01-05_uphold", "site.com", "control", "1")
	}

	result, err := f.svc.FreezeSurveyor(context.Background(), "2024-01-05_uphold")
	require.NoError(t, err)
	require.Equal(t, 1, result.Mixed)
	require.Equal(t, 1, result.Transactions)

	rows := f.transactions(t)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, enums.TransactionTypeContribution, row.TransactionType)
	require.Equal(t, "site.com", row.ToAccount)
	require.Equal(t, enums.AccountTypeChannel, row.ToAccountType)
	require.Equal(t, settlementAddress, row.FromAccount)
	require.Equal(t, enums.AccountTypeUphold, row.FromAccountType)
	require.Equal(t, "12.750000000000000000", row.Amount.StringFixed(ledger.AltPrecision))
	require.Equal(t, "votes from 2024-01-05_uphold", row.Description)
	require.Equal(t, ledger.VotingContributionID("2024-01-05_uphold", "site.com"), row.ID)

	var vote models.Vote
	require.NoError(t, f.conn.First(&vote, "surveyor_id = ?", "2024-01-05_uphold").Error)
	require.True(t, vote.Transacted)
	require.True(t, vote.Tally.Equal(decimal.NewFromInt(51)))
	require.True(t, vote.Amount.Decimal.Equal(decimal.RequireFromString("12.1125")))
	require.True(t, vote.Fees.Decimal.Equal(decimal.RequireFromString("0.6375")))

	var group models.SurveyorGroup
	require.NoError(t, f.conn.First(&group, "id = ?", "2024-01-05_uphold").Error)
	require.True(t, group.Frozen)
}

func TestMixingArithmetic(t *testing.T) {
	f := newFixture(t)
	f.vote(t, "grp", "site.com", "control", "10")
	f.vote(t, "grp", "other.com", "test", "4")

	result, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.NoError(t, err)
	require.Equal(t, 1, result.Mixed)

	var mixed models.Vote
	require.NoError(t, f.conn.First(&mixed, "channel = ?", "site.com").Error)
	require.Equal(t, "2.375", mixed.Amount.Decimal.String())
	require.Equal(t, "0.125", mixed.Fees.Decimal.String())

	var excluded models.Vote
	require.NoError(t, f.conn.First(&excluded, "channel = ?", "other.com").Error)
	require.True(t, excluded.Excluded)
	require.False(t, excluded.Amount.Valid)
	require.False(t, excluded.Transacted)
}

func TestFreezeAndTransactIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.vote(t, "grp", "site.com", "control", "2")
	f.vote(t, "grp", "twitch#channel:streamer", "control", "2")

	_, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.NoError(t, err)
	again, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.NoError(t, err)
	require.Zero(t, again.Mixed)
	require.Zero(t, again.Transactions)

	rows := f.transactions(t)
	require.Len(t, rows, 2)
	require.Equal(t, "site.com", rows[0].ToAccount)
	require.Equal(t, "twitch#author:streamer", rows[1].ToAccount)
}

func TestYouTubeUserChannelsStayPending(t *testing.T) {
	f := newFixture(t)
	f.vote(t, "grp", "youtube#channel:handle", "control", "2")

	result, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.NoError(t, err)
	require.Equal(t, []string{"youtube#user:handle"}, result.SkippedChannels)
	require.Empty(t, f.transactions(t))

	require.NoError(t, f.svc.WaitForTransacted(context.Background(), "grp"))
}

func TestWaitForTransactedTimesOut(t *testing.T) {
	f := newFixture(t)
	f.vote(t, "grp", "site.com", "control", "2")

	err := f.svc.WaitForTransacted(context.Background(), "grp")
	require.Error(t, err)
	require.True(t, IsFreezeTimeout(err))
	require.Equal(t, 12, f.clock.sleeps)
}

func TestFreezeUnknownSurveyor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FreezeAndTransact(context.Background(), "missing")
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestFreezeCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC) }

	for _, s := range []Surveyor{
		{ID: "virtual-yesterday", Virtual: true, CreatedAt: day(5)},
		{ID: "virtual-today", Virtual: true, CreatedAt: day(6)},
		{ID: "promo-yesterday", CreatedAt: day(5)},
		{ID: "promo-two-days", CreatedAt: day(4)},
	} {
		s.Price = decimal.RequireFromString("0.25")
		_, err := f.svc.EnsureSurveyor(ctx, nil, s)
		require.NoError(t, err)
	}
	_, err := f.svc.FreezeAndTransact(ctx, "promo-two-days")
	require.NoError(t, err)

	groups, err := f.svc.FreezeCandidates(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	require.ElementsMatch(t, []string{"virtual-yesterday"}, ids)

	f.clock.now = f.clock.now.AddDate(0, 0, 1)
	groups, err = f.svc.FreezeCandidates(ctx)
	require.NoError(t, err)
	ids = ids[:0]
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	require.ElementsMatch(t, []string{"virtual-yesterday", "virtual-today", "promo-yesterday"}, ids)
}

func TestEnsureSurveyorKeepsFirstPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.EnsureSurveyor(ctx, nil, Surveyor{ID: "grp", Price: decimal.RequireFromString("0.25")})
	require.NoError(t, err)
	require.False(t, first.Frozen)

	second, err := f.svc.EnsureSurveyor(ctx, nil, Surveyor{ID: "grp", Price: decimal.RequireFromString("0.5")})
	require.NoError(t, err)
	require.True(t, second.Price.Equal(decimal.RequireFromString("0.25")))

	_, err = f.svc.EnsureSurveyor(ctx, nil, Surveyor{ID: "bad", Price: decimal.Zero})
	require.True(t, pkgerrors.IsValidation(err))
}

func TestAddVoteValidation(t *testing.T) {
	f := newFixture(t)
	err := f.svc.AddVote(context.Background(), nil, Tally{SurveyorID: "grp", Channel: "site.com", Cohort: "control", Weight: decimal.NewFromInt(-1)})
	require.True(t, pkgerrors.IsValidation(err))
	err = f.svc.AddVote(context.Background(), nil, Tally{Channel: "site.com", Cohort: "control", Weight: decimal.NewFromInt(1)})
	require.True(t, pkgerrors.IsValidation(err))
}

// bumpingRepository adds to every pending tally right after the transact
// pass has read it, the way a vote committed mid-sweep would.
type bumpingRepository struct {
	Repository
	tx     *gorm.DB
	bumped bool
}

func (r *bumpingRepository) WithTx(tx *gorm.DB) Repository {
	return &bumpingRepository{Repository: r.Repository.WithTx(tx), tx: tx, bumped: r.bumped}
}

func (r *bumpingRepository) PendingVotes(ctx context.Context, surveyorID string) ([]models.Vote, error) {
	rows, err := r.Repository.PendingVotes(ctx, surveyorID)
	if err != nil || r.tx == nil || r.bumped {
		return rows, err
	}
	r.bumped = true
	return rows, r.tx.Exec("UPDATE votes SET tally = tally + 1 WHERE surveyor_id = ?", surveyorID).Error
}

func TestFreezeAndTransactRollsBackWhenTallyMoves(t *testing.T) {
	var bumper *bumpingRepository
	f := newFixtureWithRepository(t, func(repo Repository) Repository {
		bumper = &bumpingRepository{Repository: repo}
		return bumper
	})
	f.vote(t, "grp", "site.com", "control", "10")

	_, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	require.Empty(t, f.transactions(t))

	var group models.SurveyorGroup
	require.NoError(t, f.conn.First(&group, "id = ?", "grp").Error)
	require.False(t, group.Frozen)

	var vote models.Vote
	require.NoError(t, f.conn.First(&vote, "surveyor_id = ?", "grp").Error)
	require.False(t, vote.Transacted)
	require.False(t, vote.Amount.Valid)
	require.True(t, vote.Tally.Equal(decimal.NewFromInt(10)))

	bumper.bumped = true
	result, err := f.svc.FreezeAndTransact(context.Background(), "grp")
	require.NoError(t, err)
	require.Equal(t, 1, result.Transactions)
	rows := f.transactions(t)
	require.Len(t, rows, 1)
	require.Equal(t, "2.5", rows[0].Amount.String())
}

func TestFreezeAndTransactLargeGroup(t *testing.T) {
	if testing.Short() {
		t.Skip("large surveyor group")
	}
	f := newFixture(t)
	ctx := context.Background()
	const count = 40000

	_, err := f.svc.EnsureSurveyor(ctx, nil, Surveyor{
		ID:        "big",
		Price:     decimal.RequireFromString("0.25"),
		Virtual:   true,
		CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rows := make([]models.Vote, 0, count)
	for i := 0; i < count; i++ {
		cohort := fmt.Sprintf("cohort-%d", i)
		rows = append(rows, models.Vote{
			ID:         ledger.VotesID("site.com", cohort, "big"),
			Cohort:     cohort,
			Tally:      decimal.NewFromInt(1),
			Channel:    "site.com",
			SurveyorID: "big",
			CreatedAt:  f.clock.now,
			UpdatedAt:  f.clock.now,
		})
	}
	require.NoError(t, f.conn.CreateInBatches(rows, 500).Error)

	result, err := f.svc.FreezeAndTransact(ctx, "big")
	require.NoError(t, err)
	require.Equal(t, count, result.Mixed)
	require.Equal(t, 1, result.Transactions)

	var pending int64
	require.NoError(t, f.conn.Model(&models.Vote{}).Where("surveyor_id = ? AND NOT transacted", "big").Count(&pending).Error)
	require.Zero(t, pending)

	txns := f.transactions(t)
	require.Len(t, txns, 1)
	require.Equal(t, "10000.000000000000000000", txns[0].Amount.StringFixed(ledger.AltPrecision))
}

func TestAddVoteNormalizesChannel(t *testing.T) {
	f := newFixture(t)
	f.vote(t, "grp", "twitch#channel:abc", "control", "2")
	f.vote(t, "grp", "twitch#author:abc", "control", "1")

	var rows []models.Vote
	require.NoError(t, f.conn.Find(&rows, "surveyor_id = ?", "grp").Error)
	require.Len(t, rows, 1)
	require.Equal(t, "twitch#author:abc", rows[0].Channel)
	require.Equal(t, ledger.VotesID("twitch#author:abc", "control", "grp"), rows[0].ID)
	require.True(t, rows[0].Tally.Equal(decimal.NewFromInt(3)))
}
