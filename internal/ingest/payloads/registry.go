package payloads

import (
	"fmt"
	"sync"

	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/linkedin/goavro/v2"
)

// DefaultVersion applies when a message carries no schema version.
const DefaultVersion = 1

type decoderFunc func(native map[string]any) (any, error)

type registryKey struct {
	kind    enums.EventKind
	version int
}

type entry struct {
	codec  *goavro.Codec
	decode decoderFunc
}

// Registry stores versioned Avro codecs for every inbound event kind.
type Registry struct {
	mtx      sync.RWMutex
	registry map[registryKey]entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{registry: make(map[registryKey]entry)}
}

// NewDefaultRegistry builds a registry holding every known schema version.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	defs := []struct {
		kind    enums.EventKind
		version int
		schema  string
		decode  decoderFunc
	}{
		{enums.EventKindVote, 1, voteSchemaV1, decodeVote},
		{enums.EventKindVote, 2, voteSchemaV2, decodeVote},
		{enums.EventKindSuggestion, 1, suggestionSchemaV1, decodeSuggestion},
		{enums.EventKindSettlement, 1, settlementSchemaV1, decodeSettlement},
		{enums.EventKindSettlement, 2, settlementSchemaV2, decodeSettlement},
		{enums.EventKindReferral, 1, referralSchemaV1, decodeReferral},
		{enums.EventKindReferral, 2, referralSchemaV2, decodeReferral},
		{enums.EventKindAdPayout, 1, adPayoutSchemaV1, decodeAdPayout},
	}
	for _, def := range defs {
		if err := r.Register(def.kind, def.version, def.schema, def.decode); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles schema and stores it with its decoder.
func (r *Registry) Register(kind enums.EventKind, version int, schema string, decode decoderFunc) error {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return fmt.Errorf("compile %s@v%d schema: %w", kind, version, err)
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{kind: kind, version: version}] = entry{codec: codec, decode: decode}
	return nil
}

func (r *Registry) lookup(kind enums.EventKind, version int) (entry, error) {
	if version <= 0 {
		version = DefaultVersion
	}
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.registry[registryKey{kind: kind, version: version}]
	if !ok {
		return entry{}, pkgerrors.Newf(pkgerrors.CodeValidation, "schema not registered for %s@v%d", kind, version)
	}
	return e, nil
}

// Decode parses an Avro binary payload into the kind's typed struct and
// validates it. Every failure is a validation error: a payload that cannot be
// decoded now never will be.
func (r *Registry) Decode(kind enums.EventKind, version int, payload []byte) (any, error) {
	e, err := r.lookup(kind, version)
	if err != nil {
		return nil, err
	}
	native, _, err := e.codec.NativeFromBinary(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode avro payload")
	}
	record, ok := native.(map[string]any)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s payload is not a record", kind)
	}
	decoded, err := e.decode(record)
	if err != nil {
		return nil, err
	}
	if err := Validate(decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// Encode renders a native record with the registered schema.
func (r *Registry) Encode(kind enums.EventKind, version int, native map[string]any) ([]byte, error) {
	e, err := r.lookup(kind, version)
	if err != nil {
		return nil, err
	}
	buf, err := e.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("encode %s@v%d: %w", kind, version, err)
	}
	return buf, nil
}

func decodeVote(native map[string]any) (any, error) {
	vote := &Vote{
		ID:            stringField(native, "id"),
		Type:          stringField(native, "type"),
		Channel:       stringField(native, "channel"),
		CreatedAt:     stringField(native, "createdAt"),
		BaseVoteValue: stringField(native, "baseVoteValue"),
		VoteTally:     longField(native, "voteTally", 1),
		FundingSource: stringField(native, "fundingSource"),
	}
	if vote.BaseVoteValue == "" {
		vote.BaseVoteValue = DefaultBaseVoteValue
	}
	if vote.FundingSource == "" {
		vote.FundingSource = DefaultFundingSource
	}
	return vote, nil
}

func decodeSuggestion(native map[string]any) (any, error) {
	suggestion := &Suggestion{
		ID:          stringField(native, "id"),
		Type:        stringField(native, "type"),
		Channel:     stringField(native, "channel"),
		CreatedAt:   stringField(native, "createdAt"),
		TotalAmount: stringField(native, "totalAmount"),
	}
	for _, item := range recordList(native, "funding") {
		suggestion.Funding = append(suggestion.Funding, Funding{
			Type:      stringField(item, "type"),
			Amount:    stringField(item, "amount"),
			Cohort:    stringField(item, "cohort"),
			Promotion: stringField(item, "promotion"),
		})
	}
	return suggestion, nil
}

func decodeSettlement(native map[string]any) (any, error) {
	settlement := &Settlement{
		ID:           stringField(native, "id"),
		Address:      stringField(native, "address"),
		SettlementID: stringField(native, "settlementId"),
		Publisher:    stringField(native, "publisher"),
		AltCurrency:  stringField(native, "altcurrency"),
		Currency:     stringField(native, "currency"),
		CreatedAt:    stringField(native, "createdAt"),
		Owner:        stringField(native, "owner"),
		Probi:        stringField(native, "probi"),
		Fees:         stringField(native, "fees"),
		Type:         stringField(native, "type"),
		DocumentID:   stringField(native, "documentId"),
		Amount:       stringField(native, "amount"),
	}
	if settlement.Fees == "" {
		settlement.Fees = "0"
	}
	return settlement, nil
}

func decodeReferral(native map[string]any) (any, error) {
	referral := &Referral{
		ID:            stringField(native, "id"),
		TransactionID: stringField(native, "transactionId"),
		Publisher:     stringField(native, "publisher"),
		Owner:         stringField(native, "owner"),
		AltCurrency:   stringField(native, "altcurrency"),
		CreatedAt:     stringField(native, "createdAt"),
		Currency:      stringField(native, "currency"),
	}
	if referral.Currency == "" {
		referral.Currency = DefaultReferralCurrency
	}
	for _, item := range recordList(native, "inputs") {
		referral.Inputs = append(referral.Inputs, ReferralInput{
			Finalized:         stringField(item, "finalized"),
			ReferralCode:      stringField(item, "referralCode"),
			DownloadID:        stringField(item, "downloadId"),
			DownloadTimestamp: stringField(item, "downloadTimestamp"),
			CountryGroupID:    stringField(item, "countryGroupId"),
			Platform:          stringField(item, "platform"),
			PayoutRate:        stringField(item, "payoutRate"),
			Probi:             stringField(item, "probi"),
		})
	}
	return referral, nil
}

func decodeAdPayout(native map[string]any) (any, error) {
	payout := &AdPayout{
		ID:        stringField(native, "id"),
		PaymentID: stringField(native, "paymentId"),
		TokenID:   stringField(native, "tokenId"),
		Amount:    stringField(native, "amount"),
		Currency:  stringField(native, "currency"),
		CreatedAt: stringField(native, "createdAt"),
	}
	if payout.Currency == "" {
		payout.Currency = DefaultAdCurrency
	}
	return payout, nil
}

func stringField(native map[string]any, name string) string {
	if value, ok := native[name].(string); ok {
		return value
	}
	return ""
}

func longField(native map[string]any, name string, fallback int64) int64 {
	switch value := native[name].(type) {
	case int64:
		return value
	case int32:
		return int64(value)
	case int:
		return int64(value)
	}
	return fallback
}

func recordList(native map[string]any, name string) []map[string]any {
	items, _ := native[name].([]any)
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records
}
