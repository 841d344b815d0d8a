package payloads

// Vote is one auto-contribution vote for a channel.
type Vote struct {
	ID            string `avro:"id" validate:"required"`
	Type          string `avro:"type"`
	Channel       string `avro:"channel" validate:"required"`
	CreatedAt     string `avro:"createdAt"`
	BaseVoteValue string `avro:"baseVoteValue" validate:"required"`
	VoteTally     int64  `avro:"voteTally" validate:"gte=0"`
	FundingSource string `avro:"fundingSource" validate:"required"`
}

// Funding is one grant promotion backing a suggestion.
type Funding struct {
	Type      string `avro:"type" validate:"required"`
	Amount    string `avro:"amount" validate:"required"`
	Cohort    string `avro:"cohort"`
	Promotion string `avro:"promotion" validate:"required"`
}

// Suggestion is a client's request to spend grant funds on a channel.
type Suggestion struct {
	ID          string    `avro:"id" validate:"required"`
	Type        string    `avro:"type"`
	Channel     string    `avro:"channel" validate:"required"`
	CreatedAt   string    `avro:"createdAt"`
	TotalAmount string    `avro:"totalAmount"`
	Funding     []Funding `avro:"funding" validate:"dive"`
}

// Settlement is a payout instruction for one channel owner.
type Settlement struct {
	ID           string `avro:"id" validate:"required"`
	Address      string `avro:"address"`
	SettlementID string `avro:"settlementId" validate:"required"`
	Publisher    string `avro:"publisher" validate:"required"`
	AltCurrency  string `avro:"altcurrency"`
	Currency     string `avro:"currency"`
	CreatedAt    string `avro:"createdAt"`
	Owner        string `avro:"owner"`
	Probi        string `avro:"probi"`
	Fees         string `avro:"fees"`
	Type         string `avro:"type" validate:"required"`
	DocumentID   string `avro:"documentId"`
	Amount       string `avro:"amount"`
}

// ReferralInput is one finalized referral download.
type ReferralInput struct {
	Finalized         string `avro:"finalized"`
	ReferralCode      string `avro:"referralCode"`
	DownloadID        string `avro:"downloadId"`
	DownloadTimestamp string `avro:"downloadTimestamp"`
	CountryGroupID    string `avro:"countryGroupId"`
	Platform          string `avro:"platform"`
	PayoutRate        string `avro:"payoutRate"`
	Probi             string `avro:"probi"`
}

// Referral is a finalized referral set for one owner and channel.
type Referral struct {
	ID            string          `avro:"id" validate:"required"`
	TransactionID string          `avro:"transactionId" validate:"required"`
	Publisher     string          `avro:"publisher"`
	Owner         string          `avro:"owner" validate:"required"`
	AltCurrency   string          `avro:"altcurrency" validate:"required"`
	CreatedAt     string          `avro:"createdAt"`
	Inputs        []ReferralInput `avro:"inputs"`
	Currency      string          `avro:"currency"`
}

// AdPayout credits an ads wallet for a redeemed confirmation token.
type AdPayout struct {
	ID        string `avro:"id" validate:"required"`
	PaymentID string `avro:"paymentId" validate:"required"`
	TokenID   string `avro:"tokenId" validate:"required"`
	Amount    string `avro:"amount" validate:"required"`
	Currency  string `avro:"currency"`
	CreatedAt string `avro:"createdAt"`
}
