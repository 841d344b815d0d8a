package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/ingest/payloads"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type ledgerWriter interface {
	Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	InsertFromSettlement(ctx context.Context, tx *gorm.DB, settlement ledger.Settlement) error
	InsertFromReferral(ctx context.Context, tx *gorm.DB, referral ledger.Referral) error
	InsertFromAd(ctx context.Context, tx *gorm.DB, payout ledger.AdPayout) error
}

// LedgerParams wires the ledger backed handlers.
type LedgerParams struct {
	Ledger ledgerWriter
	Logger *logger.Logger
	Now    func() time.Time
}

type ledgerHandler struct {
	ledger ledgerWriter
	logg   *logger.Logger
	now    func() time.Time
}

func newLedgerHandler(params LedgerParams) (*ledgerHandler, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ledgerHandler{ledger: params.Ledger, logg: params.Logger, now: now}, nil
}

// apply runs insert unless id was applied earlier in the batch or is already
// stored.
func (h *ledgerHandler) apply(ctx context.Context, tx *gorm.DB, batch *Batch, id uuid.UUID, insert func() error) (Outcome, error) {
	key := "tx:" + id.String()
	if batch.Handled(key) {
		return OutcomeSkipped, nil
	}
	exists, err := h.ledger.Exists(ctx, tx, id)
	if err != nil {
		return "", err
	}
	if exists {
		batch.Mark(key)
		h.logg.Debug(ctx, "transaction already recorded")
		return OutcomeSkipped, nil
	}
	if err := insert(); err != nil {
		return "", err
	}
	batch.Mark(key)
	return OutcomeProcessed, nil
}

func unexpectedPayload(want string, payload any) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "expected %s payload, got %T", want, payload)
}

// SettlementHandler records settlement payouts.
type SettlementHandler struct {
	*ledgerHandler
}

// NewSettlementHandler builds the settlement topic handler.
func NewSettlementHandler(params LedgerParams) (*SettlementHandler, error) {
	base, err := newLedgerHandler(params)
	if err != nil {
		return nil, err
	}
	return &SettlementHandler{base}, nil
}

func (h *SettlementHandler) Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error) {
	event, ok := payload.(*payloads.Settlement)
	if !ok {
		return "", unexpectedPayload("settlement", payload)
	}
	settlementType, err := enums.ParseSettlementType(event.Type)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "settlement type")
	}
	channel := ledger.NormalizeChannel(event.Publisher)
	id, err := ledger.SettlementID(event.SettlementID, channel, settlementType)
	if err != nil {
		return "", err
	}
	ctx = h.logg.WithFields(ctx, map[string]any{"settlement_id": event.SettlementID, "channel": channel})
	return h.apply(ctx, tx, batch, id, func() error {
		return h.ledger.InsertFromSettlement(ctx, tx, ledger.Settlement{
			EventID:      event.ID,
			SettlementID: event.SettlementID,
			DocumentID:   event.DocumentID,
			Publisher:    event.Publisher,
			Owner:        event.Owner,
			Address:      event.Address,
			AltCurrency:  event.AltCurrency,
			Probi:        event.Probi,
			Fees:         event.Fees,
			Currency:     event.Currency,
			Amount:       event.Amount,
			Type:         event.Type,
			CreatedAt:    payloads.ParseCreatedAt(event.CreatedAt, h.now()),
		})
	})
}

// ReferralHandler records finalized referral payouts.
type ReferralHandler struct {
	*ledgerHandler
}

// NewReferralHandler builds the referral topic handler.
func NewReferralHandler(params LedgerParams) (*ReferralHandler, error) {
	base, err := newLedgerHandler(params)
	if err != nil {
		return nil, err
	}
	return &ReferralHandler{base}, nil
}

func (h *ReferralHandler) Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error) {
	event, ok := payload.(*payloads.Referral)
	if !ok {
		return "", unexpectedPayload("referral", payload)
	}
	channel := ledger.NormalizeChannel(event.Publisher)
	id := ledger.ReferralID(event.TransactionID, channel)
	inputs := make([]ledger.ReferralInput, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		inputs = append(inputs, ledger.ReferralInput{Probi: input.Probi, PayoutRate: input.PayoutRate})
	}
	ctx = h.logg.WithFields(ctx, map[string]any{"transaction_id": event.TransactionID, "channel": channel})
	return h.apply(ctx, tx, batch, id, func() error {
		return h.ledger.InsertFromReferral(ctx, tx, ledger.Referral{
			TransactionID: event.TransactionID,
			Publisher:     event.Publisher,
			Owner:         event.Owner,
			AltCurrency:   event.AltCurrency,
			Currency:      event.Currency,
			Inputs:        inputs,
			CreatedAt:     payloads.ParseCreatedAt(event.CreatedAt, h.now()),
		})
	})
}

// AdPayoutHandler credits ads wallets.
type AdPayoutHandler struct {
	*ledgerHandler
}

// NewAdPayoutHandler builds the ad payout topic handler.
func NewAdPayoutHandler(params LedgerParams) (*AdPayoutHandler, error) {
	base, err := newLedgerHandler(params)
	if err != nil {
		return nil, err
	}
	return &AdPayoutHandler{base}, nil
}

func (h *AdPayoutHandler) Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error) {
	event, ok := payload.(*payloads.AdPayout)
	if !ok {
		return "", unexpectedPayload("ad payout", payload)
	}
	id := ledger.AdPayoutID(event.PaymentID, event.TokenID)
	ctx = h.logg.WithField(ctx, "payment_id", event.PaymentID)
	return h.apply(ctx, tx, batch, id, func() error {
		return h.ledger.InsertFromAd(ctx, tx, ledger.AdPayout{
			PaymentID: event.PaymentID,
			TokenID:   event.TokenID,
			Amount:    event.Amount,
			Currency:  event.Currency,
			CreatedAt: payloads.ParseCreatedAt(event.CreatedAt, h.now()),
		})
	})
}

var (
	_ Handler = (*SettlementHandler)(nil)
	_ Handler = (*ReferralHandler)(nil)
	_ Handler = (*AdPayoutHandler)(nil)
)

func describe(kind enums.EventKind, id string) string {
	return fmt.Sprintf("%s %s", kind, id)
}
