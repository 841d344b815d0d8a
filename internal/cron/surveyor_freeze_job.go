package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type surveyorFreezer interface {
	FreezeCandidates(ctx context.Context) ([]models.SurveyorGroup, error)
	FreezeSurveyor(ctx context.Context, surveyorID string) (votes.Result, error)
}

type reportWriter interface {
	Report(ctx context.Context, tx *gorm.DB, report reports.Report) error
}

type SurveyorFreezeJobParams struct {
	Logger   *logger.Logger
	Votes    surveyorFreezer
	Reporter reportWriter
}

// NewSurveyorFreezeJob freezes, mixes and transacts every due surveyor group.
func NewSurveyorFreezeJob(params SurveyorFreezeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Votes == nil {
		return nil, fmt.Errorf("votes service required")
	}
	if params.Reporter == nil {
		return nil, fmt.Errorf("reporter required")
	}
	return &surveyorFreezeJob{
		logg:     params.Logger,
		votes:    params.Votes,
		reporter: params.Reporter,
	}, nil
}

type surveyorFreezeJob struct {
	logg     *logger.Logger
	votes    surveyorFreezer
	reporter reportWriter
}

func (j *surveyorFreezeJob) Name() string { return "surveyor-freeze" }

// Run sweeps each candidate independently. A group that does not finish
// transacting in time is reported and skipped.
func (j *surveyorFreezeJob) Run(ctx context.Context) error {
	groups, err := j.votes.FreezeCandidates(ctx)
	if err != nil {
		return fmt.Errorf("surveyor freeze: %w", err)
	}

	var errs error
	frozen := 0
	for _, group := range groups {
		groupCtx := j.logg.WithSurveyorID(ctx, group.ID)
		result, err := j.votes.FreezeSurveyor(groupCtx, group.ID)
		if err != nil {
			if votes.IsFreezeTimeout(err) {
				errs = multierr.Append(errs, j.reportTimeout(groupCtx, group, err))
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("surveyor %s: %w", group.ID, err))
			continue
		}
		frozen++
		j.logg.Info(j.logg.WithFields(groupCtx, map[string]any{
			"votes_mixed":      result.Mixed,
			"transactions":     result.Transactions,
			"skipped_channels": len(result.SkippedChannels),
		}), "surveyor transacted")
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(groups),
		"frozen":     frozen,
	}), "surveyor freeze sweep complete")
	return errs
}

func (j *surveyorFreezeJob) reportTimeout(ctx context.Context, group models.SurveyorGroup, cause error) error {
	err := j.reporter.Report(ctx, nil, reports.Report{
		Kind:    enums.ReportKindFreezeTimeout,
		Subject: group.ID,
		Message: cause.Error(),
		Details: map[string]any{
			"virtual":    group.Virtual,
			"created_at": group.CreatedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("report freeze timeout for %s: %w", group.ID, err)
	}
	return nil
}
