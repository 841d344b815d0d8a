package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/eligibility"
	"github.com/angelmondragon/payoutledger/internal/ingest/payloads"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const (
	voteCohort   = "control"
	surveyorDate = "2006-01-02"
)

type tallyWriter interface {
	EnsureSurveyor(ctx context.Context, tx *gorm.DB, surveyor votes.Surveyor) (*models.SurveyorGroup, error)
	AddVote(ctx context.Context, tx *gorm.DB, tally votes.Tally) error
}

// TallyParams wires the vote and suggestion handlers.
type TallyParams struct {
	Votes       tallyWriter
	Eligibility eligibility.Checker
	Reporter    reports.Reporter
	Logger      *logger.Logger
	// DefaultPrice prices suggestion surveyor groups.
	DefaultPrice decimal.Decimal
	Now          func() time.Time
}

type tallyHandler struct {
	votes        tallyWriter
	eligibility  eligibility.Checker
	reporter     reports.Reporter
	logg         *logger.Logger
	defaultPrice decimal.Decimal
	now          func() time.Time
}

func newTallyHandler(params TallyParams) (*tallyHandler, error) {
	if params.Votes == nil {
		return nil, errors.New("votes service required")
	}
	if params.Reporter == nil {
		return nil, errors.New("reporter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	checker := params.Eligibility
	if checker == nil {
		checker = eligibility.AlwaysEligible{}
	}
	price := params.DefaultPrice
	if !price.IsPositive() {
		price = decimal.RequireFromString(payloads.DefaultBaseVoteValue)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &tallyHandler{
		votes:        params.Votes,
		eligibility:  checker,
		reporter:     params.Reporter,
		logg:         params.Logger,
		defaultPrice: price,
		now:          now,
	}, nil
}

// ensureSurveyor upserts the group once per delivery and reports whether
// votes may still be added to it.
func (h *tallyHandler) ensureSurveyor(ctx context.Context, tx *gorm.DB, batch *Batch, surveyor votes.Surveyor) (bool, error) {
	key := "surveyor:" + surveyor.ID
	frozen, ok := batch.Surveyor(key)
	if !ok {
		group, err := h.votes.EnsureSurveyor(ctx, tx, surveyor)
		if err != nil {
			return false, err
		}
		frozen = group.Frozen
		batch.MarkSurveyor(key, frozen)
	}
	return !frozen, nil
}

// rejectFrozen drops a vote whose surveyor group already transacted.
func (h *tallyHandler) rejectFrozen(ctx context.Context, tx *gorm.DB, kind enums.EventKind, eventID string, tally votes.Tally) error {
	h.logg.Warn(ctx, "vote for frozen surveyor dropped")
	return h.reporter.Report(ctx, tx, reports.Report{
		Kind:    enums.ReportKindFrozenSurveyorVote,
		Subject: tally.SurveyorID,
		Message: "vote received after surveyor froze: " + describe(kind, eventID),
		Details: map[string]any{
			"channel": tally.Channel,
			"cohort":  tally.Cohort,
			"tally":   tally.Weight.String(),
		},
	})
}

// VoteHandler tallies auto-contribution votes.
type VoteHandler struct {
	*tallyHandler
}

// NewVoteHandler builds the vote topic handler.
func NewVoteHandler(params TallyParams) (*VoteHandler, error) {
	base, err := newTallyHandler(params)
	if err != nil {
		return nil, err
	}
	return &VoteHandler{base}, nil
}

func (h *VoteHandler) Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error) {
	event, ok := payload.(*payloads.Vote)
	if !ok {
		return "", unexpectedPayload("vote", payload)
	}
	ctx = h.logg.WithField(ctx, "channel", event.Channel)
	if !h.eligibility.IsChannelEligible(ctx, event.Channel) {
		h.logg.Info(ctx, "vote for ineligible channel ignored")
		return OutcomeSkipped, nil
	}
	price, err := ledger.ParseAmount("baseVoteValue", event.BaseVoteValue)
	if err != nil {
		return "", err
	}
	now := h.now().UTC()
	surveyor := votes.Surveyor{
		ID:        now.Format(surveyorDate) + "_" + event.FundingSource,
		Price:     price,
		Virtual:   true,
		CreatedAt: now,
	}
	ctx = h.logg.WithSurveyorID(ctx, surveyor.ID)
	tally := votes.Tally{
		SurveyorID: surveyor.ID,
		Channel:    event.Channel,
		Cohort:     voteCohort,
		Weight:     decimal.NewFromInt(event.VoteTally),
	}
	open, err := h.ensureSurveyor(ctx, tx, batch, surveyor)
	if err != nil {
		return "", err
	}
	if !open {
		if err := h.rejectFrozen(ctx, tx, enums.EventKindVote, event.ID, tally); err != nil {
			return "", err
		}
		return OutcomeSkipped, nil
	}
	if err := h.votes.AddVote(ctx, tx, tally); err != nil {
		return "", err
	}
	return OutcomeProcessed, nil
}

// SuggestionHandler tallies grant funded suggestions, one vote per funding
// promotion.
type SuggestionHandler struct {
	*tallyHandler
}

// NewSuggestionHandler builds the suggestion topic handler.
func NewSuggestionHandler(params TallyParams) (*SuggestionHandler, error) {
	base, err := newTallyHandler(params)
	if err != nil {
		return nil, err
	}
	return &SuggestionHandler{base}, nil
}

func (h *SuggestionHandler) Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error) {
	event, ok := payload.(*payloads.Suggestion)
	if !ok {
		return "", unexpectedPayload("suggestion", payload)
	}
	ctx = h.logg.WithField(ctx, "channel", event.Channel)
	if !h.eligibility.IsChannelEligible(ctx, event.Channel) {
		h.logg.Info(ctx, "suggestion for ineligible channel ignored")
		return OutcomeSkipped, nil
	}

	tallies := make([]votes.Tally, 0, len(event.Funding))
	for _, funding := range event.Funding {
		amount, err := ledger.ParseAmount("funding.amount", funding.Amount)
		if err != nil {
			return "", err
		}
		tallies = append(tallies, votes.Tally{
			SurveyorID: funding.Promotion,
			Channel:    event.Channel,
			Cohort:     funding.Type,
			Weight:     amount.DivRound(h.defaultPrice, ledger.AltPrecision),
		})
	}
	if len(tallies) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "suggestion carries no funding")
	}

	outcome := OutcomeSkipped
	now := h.now().UTC()
	for _, tally := range tallies {
		tallyCtx := h.logg.WithSurveyorID(ctx, tally.SurveyorID)
		open, err := h.ensureSurveyor(tallyCtx, tx, batch, votes.Surveyor{
			ID:        tally.SurveyorID,
			Price:     h.defaultPrice,
			CreatedAt: now,
		})
		if err != nil {
			return "", err
		}
		if !open {
			if err := h.rejectFrozen(tallyCtx, tx, enums.EventKindSuggestion, event.ID, tally); err != nil {
				return "", err
			}
			continue
		}
		if err := h.votes.AddVote(tallyCtx, tx, tally); err != nil {
			return "", err
		}
		outcome = OutcomeProcessed
	}
	return outcome, nil
}

var (
	_ Handler = (*VoteHandler)(nil)
	_ Handler = (*SuggestionHandler)(nil)
)
