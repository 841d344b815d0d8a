package votes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const (
	defaultFreezeAgeDays = 1
	defaultPollInterval  = 5 * time.Second
	defaultWaitTimeout   = time.Hour
)

// Service accumulates votes and converts frozen surveyor groups into ledger
// contributions.
type Service interface {
	EnsureSurveyor(ctx context.Context, tx *gorm.DB, surveyor Surveyor) (*models.SurveyorGroup, error)
	AddVote(ctx context.Context, tx *gorm.DB, tally Tally) error
	FreezeCandidates(ctx context.Context) ([]models.SurveyorGroup, error)
	FreezeAndTransact(ctx context.Context, surveyorID string) (Result, error)
	WaitForTransacted(ctx context.Context, surveyorID string) error
	FreezeSurveyor(ctx context.Context, surveyorID string) (Result, error)
}

type ledgerWriter interface {
	InsertTransaction(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (bool, error)
	SettlementAddress() string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Surveyor declares a surveyor group as seen on an incoming event.
type Surveyor struct {
	ID        string
	Price     decimal.Decimal
	Virtual   bool
	CreatedAt time.Time
}

// Tally adds Weight to the vote identified by channel, cohort and surveyor.
type Tally struct {
	SurveyorID string
	Channel    string
	Cohort     string
	Weight     decimal.Decimal
}

// Result summarizes one freeze and transact pass.
type Result struct {
	SurveyorID      string
	Mixed           int
	Transactions    int
	SkippedChannels []string
}

// ServiceParams wires the votes service.
type ServiceParams struct {
	Repository     Repository
	DB             txRunner
	Ledger         ledgerWriter
	Fees           ledger.FeeSplitter
	TestingCohorts []string
	FreezeAgeDays  int
	PollInterval   time.Duration
	WaitTimeout    time.Duration
	Logger         *logger.Logger
	Now            func() time.Time
	Sleep          func(ctx context.Context, d time.Duration) error
}

type service struct {
	repo           Repository
	db             txRunner
	ledger         ledgerWriter
	fees           ledger.FeeSplitter
	testingCohorts map[string]struct{}
	freezeAgeDays  int
	pollInterval   time.Duration
	waitTimeout    time.Duration
	logg           *logger.Logger
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewService wires a votes service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "votes repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "votes tx runner required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	cohorts := make(map[string]struct{}, len(params.TestingCohorts))
	for _, cohort := range params.TestingCohorts {
		if cohort = strings.TrimSpace(cohort); cohort != "" {
			cohorts[cohort] = struct{}{}
		}
	}
	svc := &service{
		repo:           params.Repository,
		db:             params.DB,
		ledger:         params.Ledger,
		fees:           params.Fees,
		testingCohorts: cohorts,
		freezeAgeDays:  params.FreezeAgeDays,
		pollInterval:   params.PollInterval,
		waitTimeout:    params.WaitTimeout,
		logg:           params.Logger,
		now:            params.Now,
		sleep:          params.Sleep,
	}
	if svc.freezeAgeDays <= 0 {
		svc.freezeAgeDays = defaultFreezeAgeDays
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	if svc.waitTimeout <= 0 {
		svc.waitTimeout = defaultWaitTimeout
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.sleep == nil {
		svc.sleep = sleepContext
	}
	return svc, nil
}

// EnsureSurveyor creates the group if it is missing and returns the stored row.
func (s *service) EnsureSurveyor(ctx context.Context, tx *gorm.DB, surveyor Surveyor) (*models.SurveyorGroup, error) {
	if strings.TrimSpace(surveyor.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "surveyor id is required")
	}
	if !surveyor.Price.IsPositive() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "surveyor %s price must be greater than 0", surveyor.ID)
	}
	created := surveyor.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	repo := s.repo.WithTx(tx)
	group := &models.SurveyorGroup{
		ID:        surveyor.ID,
		Price:     surveyor.Price,
		Virtual:   surveyor.Virtual,
		CreatedAt: created.UTC(),
		UpdatedAt: created.UTC(),
	}
	if _, err := repo.InsertSurveyor(ctx, group); err != nil {
		return nil, pkgerrors.Wrap(db.ErrorCode(err), err, "insert surveyor group")
	}
	stored, err := repo.FindSurveyor(ctx, surveyor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load surveyor group")
	}
	return stored, nil
}

// AddVote upserts the vote row, adding the tally weight to any stored value.
// The channel is normalized before it is stored.
func (s *service) AddVote(ctx context.Context, tx *gorm.DB, tally Tally) error {
	if tally.SurveyorID == "" || tally.Channel == "" || tally.Cohort == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "vote requires surveyor, channel and cohort")
	}
	if tally.Weight.IsNegative() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "vote tally %s must not be negative", tally.Weight)
	}
	if tally.Weight.IsZero() {
		return nil
	}
	now := s.now().UTC()
	// Votes are keyed by the canonical channel so pending and settled value
	// land on the same account.
	channel := ledger.NormalizeChannel(tally.Channel)
	_, excluded := s.testingCohorts[tally.Cohort]
	vote := &models.Vote{
		ID:         ledger.VotesID(channel, tally.Cohort, tally.SurveyorID),
		Cohort:     tally.Cohort,
		Tally:      tally.Weight,
		Excluded:   excluded,
		Channel:    channel,
		SurveyorID: tally.SurveyorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.WithTx(tx).IncrementVote(ctx, vote); err != nil {
		return pkgerrors.Wrap(db.ErrorCode(err), err, "upsert vote")
	}
	return nil
}

// FreezeCandidates lists open groups due for freezing: virtual groups created
// before today, other groups created before today minus the configured age.
func (s *service) FreezeCandidates(ctx context.Context) ([]models.SurveyorGroup, error) {
	now := s.now().UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	nonVirtualBefore := startOfToday.AddDate(0, 0, -s.freezeAgeDays)

	groups, err := s.repo.FreezeCandidates(ctx, startOfToday, nonVirtualBefore)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list freeze candidates")
	}
	return groups, nil
}

type channelTotal struct {
	channel string
	amount  decimal.Decimal
	fees    decimal.Decimal
	votes   []MixedVote
}

// FreezeAndTransact freezes the group, mixes its pending votes and records one
// contribution per channel, all in one store transaction.
func (s *service) FreezeAndTransact(ctx context.Context, surveyorID string) (Result, error) {
	result := Result{SurveyorID: surveyorID}
	if s.logg != nil {
		ctx = s.logg.WithSurveyorID(ctx, surveyorID)
	}
	now := s.now().UTC()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.Freeze(ctx, surveyorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze surveyor group")
		}
		if !found {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "surveyor group %s not found", surveyorID)
		}
		group, err := repo.FindSurveyor(ctx, surveyorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load surveyor group")
		}

		pending, err := repo.PendingVotes(ctx, surveyorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending votes")
		}
		if len(pending) == 0 {
			return nil
		}

		mixed := make([]MixedVote, 0, len(pending))
		totals := map[string]*channelTotal{}
		for _, vote := range pending {
			net, fee := s.fees.Split(vote.Tally.Mul(group.Price))
			mv := MixedVote{ID: vote.ID, Tally: vote.Tally, Amount: net, Fees: fee}
			mixed = append(mixed, mv)

			channel := ledger.NormalizeChannel(vote.Channel)
			total, ok := totals[channel]
			if !ok {
				total = &channelTotal{channel: channel}
				totals[channel] = total
			}
			total.amount = total.amount.Add(net)
			total.fees = total.fees.Add(fee)
			total.votes = append(total.votes, mv)
		}
		updated, err := repo.ApplyMix(ctx, mixed, now)
		if err != nil {
			return pkgerrors.Wrap(db.ErrorCode(err), err, "mix votes")
		}
		if updated != int64(len(mixed)) {
			return votesChanged(surveyorID, "mixed", updated, len(mixed))
		}
		result.Mixed = len(mixed)

		channels := make([]string, 0, len(totals))
		for channel := range totals {
			channels = append(channels, channel)
		}
		sort.Strings(channels)

		transacted := make([]MixedVote, 0, len(pending))
		for _, channel := range channels {
			total := totals[channel]
			if ledger.IsYouTubeUser(channel) {
				result.SkippedChannels = append(result.SkippedChannels, channel)
				continue
			}
			if _, err := s.ledger.InsertTransaction(ctx, tx, s.contribution(group, total)); err != nil {
				return err
			}
			result.Transactions++
			transacted = append(transacted, total.votes...)
		}
		marked, err := repo.MarkTransacted(ctx, transacted, now)
		if err != nil {
			return pkgerrors.Wrap(db.ErrorCode(err), err, "mark votes transacted")
		}
		if marked != int64(len(transacted)) {
			return votesChanged(surveyorID, "marked", marked, len(transacted))
		}
		return nil
	})
	if err != nil {
		return Result{SurveyorID: surveyorID}, err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"mixed":        result.Mixed,
			"transactions": result.Transactions,
		})
		if len(result.SkippedChannels) > 0 {
			s.logg.Warn(s.logg.WithField(ctx, "skipped_channels", result.SkippedChannels), "channels left untransacted")
		}
		s.logg.Info(ctx, "surveyor group transacted")
	}
	return result, nil
}

// votesChanged aborts a transact pass whose votes moved after they were read.
// The rollback also undoes the freeze, so the next sweep starts over.
func votesChanged(surveyorID, step string, got int64, want int) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict,
		"surveyor %s votes changed during transact: %s %d of %d", surveyorID, step, got, want).
		WithDetails(map[string]any{"surveyor_id": surveyorID, "step": step, "rows": got, "expected": want})
}

func (s *service) contribution(group *models.SurveyorGroup, total *channelTotal) ledger.Entry {
	return ledger.Entry{
		ID:          ledger.VotingContributionID(group.ID, total.channel),
		CreatedAt:   group.CreatedAt,
		Description: "votes from " + group.ID,
		Type:        enums.TransactionTypeContribution,
		DocumentID:  group.ID,
		From:        ledger.Account{ID: s.ledger.SettlementAddress(), Type: enums.AccountTypeUphold},
		To:          ledger.Account{ID: total.channel, Type: enums.AccountTypeChannel},
		Amount:      total.amount.Add(total.fees).String(),
		Channel:     total.channel,
	}
}

// remaining counts pending votes that a transact pass can still convert.
func (s *service) remaining(ctx context.Context, surveyorID string) (int, error) {
	pending, err := s.repo.PendingVotes(ctx, surveyorID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending votes")
	}
	count := 0
	for _, vote := range pending {
		if !ledger.IsYouTubeUser(ledger.NormalizeChannel(vote.Channel)) {
			count++
		}
	}
	return count, nil
}

// WaitForTransacted polls until no convertible votes remain on the group or
// the wait timeout elapses, in which case a FREEZE_TIMEOUT error is returned.
func (s *service) WaitForTransacted(ctx context.Context, surveyorID string) error {
	deadline := s.now().Add(s.waitTimeout)
	for {
		count, err := s.remaining(ctx, surveyorID)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if !s.now().Before(deadline) {
			return pkgerrors.Newf(pkgerrors.CodeFreezeTimeout,
				"surveyor %s still has %d untransacted votes after %s", surveyorID, count, s.waitTimeout).
				WithDetails(map[string]any{"surveyor_id": surveyorID, "remaining": count})
		}
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return err
		}
	}
}

// FreezeSurveyor runs a full freeze, mix and transact pass and waits for it to settle.
func (s *service) FreezeSurveyor(ctx context.Context, surveyorID string) (Result, error) {
	result, err := s.FreezeAndTransact(ctx, surveyorID)
	if err != nil {
		return result, err
	}
	return result, s.WaitForTransacted(ctx, surveyorID)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsFreezeTimeout reports whether err came from WaitForTransacted giving up.
func IsFreezeTimeout(err error) bool {
	return pkgerrors.CodeOf(err) == pkgerrors.CodeFreezeTimeout
}
