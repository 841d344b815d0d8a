// Package reports files operator-visible failure reports for work the
// pipeline had to skip.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

// Report describes one failure.
type Report struct {
	Kind    enums.ReportKind
	Subject string
	Message string
	Details any
}

// Reporter logs and stores failure reports.
type Reporter interface {
	Report(ctx context.Context, tx *gorm.DB, report Report) error
	List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewReporter wires a reporter with the provided repository.
func NewReporter(repo Repository, logg *logger.Logger) (Reporter, error) {
	if repo == nil {
		return nil, errors.New("reports repository required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// Report writes the report inside tx when given so it commits with the work
// that produced it.
func (s *service) Report(ctx context.Context, tx *gorm.DB, report Report) error {
	if !report.Kind.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid report kind %q", report.Kind)
	}
	var details json.RawMessage
	if report.Details != nil {
		raw, err := json.Marshal(report.Details)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal report details")
		}
		details = raw
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"report_kind": string(report.Kind),
			"subject":     report.Subject,
		})
		s.logg.Error(logCtx, report.Message, nil)
	}

	row := &models.FailureReport{
		ID:        uuid.New(),
		Kind:      report.Kind,
		Subject:   report.Subject,
		Message:   report.Message,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert failure report")
	}
	return nil
}

func (s *service) List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error) {
	rows, err := s.repo.List(ctx, kind, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failure reports")
	}
	return rows, nil
}
