package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

// FeesAccount is the internal account that collects settlement fees.
const FeesAccount = "fees-account"

const (
	descriptionSettlementFees = "settlement fees"
	descriptionManualPreLeg   = "handshake agreement with business developement"
	descriptionAdPayout       = "ad payout"
)

// Service records ledger transactions. Every method accepts an optional
// enclosing transaction; when tx is nil the call opens its own.
type Service interface {
	InsertTransaction(ctx context.Context, tx *gorm.DB, entry Entry) (bool, error)
	InsertFromSettlement(ctx context.Context, tx *gorm.DB, settlement Settlement) error
	InsertFromReferral(ctx context.Context, tx *gorm.DB, referral Referral) error
	InsertFromAd(ctx context.Context, tx *gorm.DB, payout AdPayout) error
	InsertManual(ctx context.Context, tx *gorm.DB, manual ManualTransaction) (uuid.UUID, error)
	Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	SettlementAddress() string
	AltCurrency() string
}

// Converter turns a fiat amount into altcurrency units.
type Converter interface {
	FiatToAltUnits(ctx context.Context, currency string, amount decimal.Decimal, altcurrency string) (decimal.Decimal, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Account names one side of a transaction.
type Account struct {
	ID   string
	Type enums.AccountType
}

// Entry is a single ledger row before validation. Amount is a decimal string.
type Entry struct {
	ID                 uuid.UUID
	CreatedAt          time.Time
	Description        string
	Type               enums.TransactionType
	DocumentID         string
	From               Account
	To                 Account
	Amount             string
	SettlementCurrency string
	SettlementAmount   string
	Channel            string
}

// Settlement is a payout instruction from the settlement service.
type Settlement struct {
	EventID      string
	SettlementID string
	DocumentID   string
	Publisher    string
	Owner        string
	Address      string
	AltCurrency  string
	Probi        string
	Fees         string
	Currency     string
	Amount       string
	Type         string
	CreatedAt    time.Time
}

// ReferralInput is one finalized referral inside a referral set.
type ReferralInput struct {
	Probi      string
	PayoutRate string
}

// Referral is a finalized set of referrals credited to one owner and channel.
type Referral struct {
	TransactionID string
	Publisher     string
	Owner         string
	AltCurrency   string
	Currency      string
	Inputs        []ReferralInput
	CreatedAt     time.Time
}

// AdPayout credits an ads payment id for viewed ads.
type AdPayout struct {
	PaymentID string
	TokenID   string
	Amount    string
	Currency  string
	CreatedAt time.Time
}

// ManualTransaction is an operator-entered credit from the settlement address.
type ManualTransaction struct {
	DocumentID  string
	ToAccount   string
	ToType      enums.AccountType
	Amount      string
	Description string
	Channel     string
	CreatedAt   time.Time
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repository        Repository
	DB                txRunner
	Converter         Converter
	Logger            *logger.Logger
	SettlementAddress string
	AltCurrency       string
	Now               func() time.Time
}

type service struct {
	repo              Repository
	db                txRunner
	converter         Converter
	logg              *logger.Logger
	settlementAddress string
	altcurrency       string
	now               func() time.Time
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger tx runner required")
	}
	if strings.TrimSpace(params.SettlementAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement address required")
	}
	altcurrency := params.AltCurrency
	if altcurrency == "" {
		altcurrency = AltCurrencyBAT
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:              params.Repository,
		db:                params.DB,
		converter:         params.Converter,
		logg:              params.Logger,
		settlementAddress: params.SettlementAddress,
		altcurrency:       altcurrency,
		now:               now,
	}, nil
}

func (s *service) SettlementAddress() string { return s.settlementAddress }

func (s *service) AltCurrency() string { return s.altcurrency }

// atomic runs fn against a repository bound to one store transaction. Inside
// an enclosing transaction it opens a savepoint so a failure rolls back only
// the writes made by fn.
func (s *service) atomic(ctx context.Context, tx *gorm.DB, fn func(repo Repository) error) error {
	if tx != nil {
		return tx.Transaction(func(inner *gorm.DB) error {
			return fn(s.repo.WithTx(inner))
		})
	}
	return s.db.WithTx(ctx, func(inner *gorm.DB) error {
		return fn(s.repo.WithTx(inner))
	})
}

func (s *service) Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	found, err := s.repo.WithTx(tx).Exists(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction")
	}
	return found, nil
}

func (s *service) InsertTransaction(ctx context.Context, tx *gorm.DB, entry Entry) (bool, error) {
	return s.insert(ctx, s.repo.WithTx(tx), entry)
}

func (s *service) insert(ctx context.Context, repo Repository, entry Entry) (bool, error) {
	txn, err := entry.model()
	if err != nil {
		return false, err
	}
	if txn == nil {
		return false, nil
	}
	inserted, err := repo.Insert(ctx, txn)
	if err != nil {
		return false, pkgerrors.Wrap(db.ErrorCode(err), err, "insert transaction")
	}
	if !inserted && s.logg != nil {
		s.logg.Debug(s.logg.WithField(ctx, "transaction_id", txn.ID.String()), "transaction already recorded")
	}
	return inserted, nil
}

// model validates the entry. A nil model with a nil error means the amount is
// not positive and nothing should be written.
func (e Entry) model() (*models.Transaction, error) {
	amount, err := ParseAmount("amount", e.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, nil
	}
	if e.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !e.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", e.Type)
	}
	if e.From.ID == "" || e.To.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to accounts are required")
	}
	if !e.From.Type.IsValid() || !e.To.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid account types %q -> %q", e.From.Type, e.To.Type)
	}

	txn := &models.Transaction{
		ID:              e.ID,
		CreatedAt:       e.CreatedAt.UTC(),
		Description:     e.Description,
		TransactionType: e.Type,
		DocumentID:      e.DocumentID,
		FromAccount:     e.From.ID,
		FromAccountType: e.From.Type,
		ToAccount:       e.To.ID,
		ToAccountType:   e.To.Type,
		Amount:          amount,
	}
	if e.SettlementCurrency != "" {
		currency := e.SettlementCurrency
		txn.SettlementCurrency = &currency
	}
	if e.SettlementAmount != "" {
		settled, err := ParseAmount("settlement amount", e.SettlementAmount)
		if err != nil {
			return nil, err
		}
		txn.SettlementAmount = decimal.NullDecimal{Decimal: settled, Valid: true}
	}
	if e.Channel != "" {
		channel := e.Channel
		txn.Channel = &channel
	}
	return txn, nil
}

// SettlementEntries validates a settlement and returns its ledger legs in
// insertion order. Nothing is written.
func SettlementEntries(settlement Settlement, settlementAddress string) ([]Entry, error) {
	probi, err := ParseAmount("probi", settlement.Probi)
	if err != nil {
		return nil, err
	}
	scaled, err := ProbiToAlt(settlement.AltCurrency, probi)
	if err != nil {
		return nil, err
	}
	if !probi.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement probi must be greater than 0")
	}
	if !probi.IsInteger() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "settlement probi %s must be a whole number", probi)
	}
	if strings.TrimSpace(settlement.Owner) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement owner is required")
	}
	if strings.TrimSpace(settlement.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement address is required")
	}
	if strings.TrimSpace(settlement.SettlementID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id is required")
	}
	settlementType, err := enums.ParseSettlementType(settlement.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "settlement type")
	}
	fees, err := ParseOptionalAmount("fees", settlement.Fees)
	if err != nil {
		return nil, err
	}
	if fees.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement fees must not be negative")
	}
	if !fees.IsInteger() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "settlement fees %s must be a whole number", fees)
	}

	channel := NormalizeChannel(settlement.Publisher)
	if channel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement publisher is required")
	}
	if IsYouTubeUser(channel) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unexpected provider suffix: %s", channel)
	}

	documentID := settlement.DocumentID
	if documentID == "" {
		documentID = settlement.EventID
	}
	created := settlement.CreatedAt.UTC()
	owner := Account{ID: settlement.Owner, Type: enums.AccountTypeOwner}

	entries := make([]Entry, 0, 3)
	switch settlementType {
	case enums.SettlementTypeContribution:
		gross, _ := ProbiToAlt(settlement.AltCurrency, probi.Add(fees))
		entries = append(entries, Entry{
			ID:          ContributionPreLegID(settlement.SettlementID, channel),
			CreatedAt:   created,
			Description: "contributions through " + created.Format("Jan"),
			Type:        enums.TransactionTypeContribution,
			DocumentID:  documentID,
			From:        Account{ID: channel, Type: enums.AccountTypeChannel},
			To:          owner,
			Amount:      gross.String(),
			Channel:     channel,
		})
		if fees.IsPositive() {
			feeAmount, _ := ProbiToAlt(settlement.AltCurrency, fees)
			entries = append(entries, Entry{
				ID:          FeesLegID(settlement.SettlementID, channel),
				CreatedAt:   created.Add(time.Second),
				Description: descriptionSettlementFees,
				Type:        enums.TransactionTypeFees,
				DocumentID:  documentID,
				From:        owner,
				To:          Account{ID: FeesAccount, Type: enums.AccountTypeInternal},
				Amount:      feeAmount.String(),
				Channel:     channel,
			})
		}
	case enums.SettlementTypeManual:
		entries = append(entries, Entry{
			ID:          ManualPreLegID(settlement.SettlementID, channel),
			CreatedAt:   created,
			Description: descriptionManualPreLeg,
			Type:        enums.TransactionTypeManual,
			DocumentID:  documentID,
			From:        Account{ID: settlementAddress, Type: enums.AccountTypeUphold},
			To:          owner,
			Amount:      scaled.String(),
			Channel:     channel,
		})
	}

	payoutID, err := SettlementID(settlement.SettlementID, channel, settlementType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "settlement id")
	}
	entries = append(entries, Entry{
		ID:                 payoutID,
		CreatedAt:          created.Add(2 * time.Second),
		Description:        "payout for " + string(settlementType),
		Type:               settlementType.TransactionType(),
		DocumentID:         documentID,
		From:               owner,
		To:                 Account{ID: settlement.Address, Type: enums.AccountTypeUphold},
		Amount:             scaled.String(),
		SettlementCurrency: settlement.Currency,
		SettlementAmount:   settlement.Amount,
		Channel:            channel,
	})
	return entries, nil
}

func (s *service) InsertFromSettlement(ctx context.Context, tx *gorm.DB, settlement Settlement) error {
	entries, err := SettlementEntries(settlement, s.settlementAddress)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := entry.model(); err != nil {
			return err
		}
	}
	return s.atomic(ctx, tx, func(repo Repository) error {
		for _, entry := range entries {
			if _, err := s.insert(ctx, repo, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) InsertFromReferral(ctx context.Context, tx *gorm.DB, referral Referral) error {
	if referral.AltCurrency != s.altcurrency {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported altcurrency %q", referral.AltCurrency)
	}
	if strings.TrimSpace(referral.TransactionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral transaction id is required")
	}
	if strings.TrimSpace(referral.Owner) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral owner is required")
	}
	channel := NormalizeChannel(referral.Publisher)
	if IsYouTubeUser(channel) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unexpected provider suffix: %s", channel)
	}

	total := decimal.Zero
	for i, input := range referral.Inputs {
		amount, err := s.referralInputAmount(ctx, referral, input)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOf(err), err, "referral input "+strconv.Itoa(i))
		}
		total = total.Add(amount)
	}

	created := referral.CreatedAt.UTC()
	entry := Entry{
		ID:          ReferralID(referral.TransactionID, channel),
		CreatedAt:   created,
		Description: "referrals through " + created.Format("Jan"),
		Type:        enums.TransactionTypeReferral,
		DocumentID:  referral.TransactionID,
		From:        Account{ID: s.settlementAddress, Type: enums.AccountTypeUphold},
		To:          Account{ID: referral.Owner, Type: enums.AccountTypeOwner},
		Amount:      total.String(),
		Channel:     channel,
	}
	return s.atomic(ctx, tx, func(repo Repository) error {
		_, err := s.insert(ctx, repo, entry)
		return err
	})
}

// referralInputAmount returns an input's value in altcurrency units. Inputs
// that predate probi are priced from their payout rate.
func (s *service) referralInputAmount(ctx context.Context, referral Referral, input ReferralInput) (decimal.Decimal, error) {
	if strings.TrimSpace(input.Probi) != "" {
		probi, err := ParseAmount("probi", input.Probi)
		if err != nil {
			return decimal.Zero, err
		}
		if !probi.IsInteger() {
			return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "probi %s must be a whole number", probi)
		}
		return ProbiToAlt(referral.AltCurrency, probi)
	}
	rate, err := ParseAmount("payout rate", input.PayoutRate)
	if err != nil {
		return decimal.Zero, err
	}
	return s.convert(ctx, referral.Currency, rate, referral.AltCurrency)
}

func (s *service) convert(ctx context.Context, currency string, amount decimal.Decimal, altcurrency string) (decimal.Decimal, error) {
	if currency == "" || currency == altcurrency {
		return amount, nil
	}
	if s.converter == nil {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeInternal, "no converter for %s", currency)
	}
	converted, err := s.converter.FiatToAltUnits(ctx, currency, amount, altcurrency)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert "+currency)
	}
	return converted, nil
}

func (s *service) InsertFromAd(ctx context.Context, tx *gorm.DB, payout AdPayout) error {
	if strings.TrimSpace(payout.PaymentID) == "" || strings.TrimSpace(payout.TokenID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "ad payout requires payment id and token id")
	}
	amount, err := ParseAmount("amount", payout.Amount)
	if err != nil {
		return err
	}
	amount, err = s.convert(ctx, payout.Currency, amount, s.altcurrency)
	if err != nil {
		return err
	}
	entry := Entry{
		ID:          AdPayoutID(payout.PaymentID, payout.TokenID),
		CreatedAt:   payout.CreatedAt,
		Description: descriptionAdPayout,
		Type:        enums.TransactionTypeAd,
		DocumentID:  payout.TokenID,
		From:        Account{ID: s.settlementAddress, Type: enums.AccountTypeUphold},
		To:          Account{ID: payout.PaymentID, Type: enums.AccountTypePaymentID},
		Amount:      amount.String(),
	}
	return s.atomic(ctx, tx, func(repo Repository) error {
		_, err := s.insert(ctx, repo, entry)
		return err
	})
}

func (s *service) InsertManual(ctx context.Context, tx *gorm.DB, manual ManualTransaction) (uuid.UUID, error) {
	if strings.TrimSpace(manual.DocumentID) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "document id is required")
	}
	toType := manual.ToType
	if toType == "" {
		toType = enums.AccountTypeOwner
	}
	if toType != enums.AccountTypeOwner && toType != enums.AccountTypeChannel {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "manual transactions credit owners or channels, not %q", toType)
	}
	toAccount := manual.ToAccount
	if toType == enums.AccountTypeChannel {
		toAccount = NormalizeChannel(toAccount)
	}
	created := manual.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	description := manual.Description
	if description == "" {
		description = descriptionManualPreLeg
	}
	channel := manual.Channel
	if channel == "" && toType == enums.AccountTypeChannel {
		channel = toAccount
	}
	entry := Entry{
		ID:          ManualTransactionID(manual.DocumentID, toAccount),
		CreatedAt:   created,
		Description: description,
		Type:        enums.TransactionTypeManual,
		DocumentID:  manual.DocumentID,
		From:        Account{ID: s.settlementAddress, Type: enums.AccountTypeUphold},
		To:          Account{ID: toAccount, Type: toType},
		Amount:      manual.Amount,
		Channel:     channel,
	}
	if _, err := entry.model(); err != nil {
		return uuid.Nil, err
	}
	err := s.atomic(ctx, tx, func(repo Repository) error {
		_, err := s.insert(ctx, repo, entry)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}
