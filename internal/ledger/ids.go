package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// Namespaces for UUID-v5 derivation. Changing any of them re-keys every
// row derived from it, so they are fixed for the life of the ledger.
var (
	votesNamespace             = uuid.MustParse("f0ca8ff9-8399-493a-b2c2-6d4a49e5223a")
	votingContributionNS       = uuid.MustParse("be90c1a8-20a3-4f32-be29-ed3329ca8630")
	contributionPreLegNS       = uuid.MustParse("eb296f6d-ab2a-489f-bc75-a34f1ff70acb")
	feesLegNS                  = uuid.MustParse("1d295e60-e511-41f5-8ae0-46b6b5d33333")
	manualPreLegNS             = uuid.MustParse("bf1ddb19-6a57-4a0e-a18c-7ed9c3a2f1a3")
	referralNamespace          = uuid.MustParse("3d3e7966-87c3-44ed-84c3-54d2e1c2d8a2")
	adPayoutNamespace          = uuid.MustParse("2ca02950-084f-475f-bac3-42a3c99dec95")
	manualTransactionNamespace = uuid.MustParse("734a27cd-0b6a-4bd0-8bf1-d3b5e1a1a6c1")

	settlementNamespaces = map[enums.SettlementType]uuid.UUID{
		enums.SettlementTypeContribution: uuid.MustParse("4208cdfc-26f3-44a2-9f9d-1f6657001706"),
		enums.SettlementTypeReferral:     uuid.MustParse("7fda9071-4f0d-4fe6-b3ac-b1c484d5601a"),
		enums.SettlementTypeManual:       uuid.MustParse("a7cb6b9e-b0b4-4c40-85bf-27a0172a4c70"),
	}
)

func derive(namespace uuid.UUID, parts ...string) uuid.UUID {
	name := ""
	for _, part := range parts {
		name += part
	}
	return uuid.NewSHA1(namespace, []byte(name))
}

// VotesID keys a vote row by channel, cohort and surveyor group.
func VotesID(channel, cohort, surveyorID string) uuid.UUID {
	return derive(votesNamespace, channel, cohort, surveyorID)
}

// SettlementID keys the payout leg of a settlement.
func SettlementID(settlementID, normalizedChannel string, settlementType enums.SettlementType) (uuid.UUID, error) {
	namespace, ok := settlementNamespaces[settlementType]
	if !ok {
		return uuid.Nil, fmt.Errorf("no id namespace for settlement type %q", settlementType)
	}
	return derive(namespace, settlementID, normalizedChannel), nil
}

// ReferralID keys a referral credit.
func ReferralID(transactionID, normalizedChannel string) uuid.UUID {
	return derive(referralNamespace, transactionID, normalizedChannel)
}

// ContributionPreLegID keys the channel to owner leg of a contribution settlement.
func ContributionPreLegID(settlementID, normalizedChannel string) uuid.UUID {
	return derive(contributionPreLegNS, settlementID, normalizedChannel)
}

// FeesLegID keys the owner to fee account leg of a contribution settlement.
func FeesLegID(settlementID, normalizedChannel string) uuid.UUID {
	return derive(feesLegNS, settlementID, normalizedChannel)
}

// ManualPreLegID keys the settlement address to owner leg of a manual settlement.
func ManualPreLegID(settlementID, normalizedChannel string) uuid.UUID {
	return derive(manualPreLegNS, settlementID, normalizedChannel)
}

// VotingContributionID keys the contribution produced when a surveyor group is transacted.
func VotingContributionID(surveyorID, normalizedChannel string) uuid.UUID {
	return derive(votingContributionNS, surveyorID, normalizedChannel)
}

// AdPayoutID keys an ad viewing payout.
func AdPayoutID(paymentID, tokenID string) uuid.UUID {
	return derive(adPayoutNamespace, paymentID, tokenID)
}

// ManualTransactionID keys an operator-entered transaction.
func ManualTransactionID(documentID, toAccount string) uuid.UUID {
	return derive(manualTransactionNamespace, documentID, toAccount)
}
