package balances

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payoutledger/internal/ledger"
)

func TestCreateAdsReportSnapshotsPositiveBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paidAt := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	for _, payout := range []ledger.AdPayout{
		{PaymentID: "payment-1", TokenID: "token-1", Amount: "1.5", CreatedAt: paidAt},
		{PaymentID: "payment-1", TokenID: "token-2", Amount: "0.5", CreatedAt: paidAt},
		{PaymentID: "payment-2", TokenID: "token-3", Amount: "0.25", CreatedAt: paidAt},
	} {
		require.NoError(t, f.ledger.InsertFromAd(ctx, nil, payout))
	}

	repo := NewPayoutReportRepository(f.conn)
	report, count, err := repo.CreateAdsReport(ctx, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	payments, err := repo.AdsReportPayments(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, "payment-1", payments[0].PaymentID)
	require.True(t, payments[0].Amount.Equal(decimal.NewFromInt(2)))
	require.Equal(t, "payment-2", payments[1].PaymentID)
	require.True(t, payments[1].Amount.Equal(decimal.RequireFromString("0.25")))
}

func TestCreateAdsReportWithoutBalances(t *testing.T) {
	f := newFixture(t)
	report, count, err := NewPayoutReportRepository(f.conn).CreateAdsReport(context.Background(), nil, time.Now())
	require.NoError(t, err)
	require.Zero(t, count)
	require.NotNil(t, report)
}
