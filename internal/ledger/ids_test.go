package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

func TestSettlementIDStable(t *testing.T) {
	first, err := SettlementID("5c5b7d4b", "site.com", enums.SettlementTypeContribution)
	require.NoError(t, err)
	second, err := SettlementID("5c5b7d4b", "site.com", enums.SettlementTypeContribution)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, uuid.NewSHA1(uuid.MustParse("4208cdfc-26f3-44a2-9f9d-1f6657001706"), []byte("5c5b7d4bsite.com")), first)
	require.Equal(t, uuid.Version(5), first.Version())
}

func TestSettlementIDDependsOnType(t *testing.T) {
	contribution, err := SettlementID("s1", "site.com", enums.SettlementTypeContribution)
	require.NoError(t, err)
	referral, err := SettlementID("s1", "site.com", enums.SettlementTypeReferral)
	require.NoError(t, err)
	manual, err := SettlementID("s1", "site.com", enums.SettlementTypeManual)
	require.NoError(t, err)

	require.NotEqual(t, contribution, referral)
	require.NotEqual(t, contribution, manual)
	require.NotEqual(t, referral, manual)

	_, err = SettlementID("s1", "site.com", enums.SettlementType("bogus"))
	require.Error(t, err)
}

func TestDerivedIDs(t *testing.T) {
	require.Equal(t,
		uuid.NewSHA1(uuid.MustParse("f0ca8ff9-8399-493a-b2c2-6d4a49e5223a"), []byte("site.comcontrol2024-01-05_uphold")),
		VotesID("site.com", "control", "2024-01-05_uphold"),
	)
	require.Equal(t,
		uuid.NewSHA1(uuid.MustParse("3d3e7966-87c3-44ed-84c3-54d2e1c2d8a2"), []byte("txn-1site.com")),
		ReferralID("txn-1", "site.com"),
	)
	require.NotEqual(t, ContributionPreLegID("s1", "site.com"), FeesLegID("s1", "site.com"))
	require.NotEqual(t, ManualPreLegID("s1", "site.com"), ContributionPreLegID("s1", "site.com"))
	require.Equal(t, AdPayoutID("pay", "tok"), AdPayoutID("pay", "tok"))
	require.NotEqual(t, ManualTransactionID("doc", "owner-a"), ManualTransactionID("doc", "owner-b"))
	require.Equal(t, VotingContributionID("surveyor", "site.com"), VotingContributionID("surveyor", "site.com"))
}
