package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/payoutledger/api/responses"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const defaultReportLimit = 50

type reportLister interface {
	List(ctx context.Context, kind enums.ReportKind, limit int) ([]models.FailureReport, error)
}

type reportView struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Subject   string          `json:"subject"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// FailureReports answers GET /reports?kind=freeze_timeout&limit=50.
func FailureReports(svc reportLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind := enums.ReportKind(strings.TrimSpace(r.URL.Query().Get("kind")))
		if kind != "" && !kind.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown report kind %q", kind))
			return
		}
		limit := defaultReportLimit
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = parsed
		}

		rows, err := svc.List(ctx, kind, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]reportView, 0, len(rows))
		for _, row := range rows {
			views = append(views, reportView{
				ID:        row.ID.String(),
				Kind:      string(row.Kind),
				Subject:   row.Subject,
				Message:   row.Message,
				Details:   row.Details,
				CreatedAt: row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			})
		}
		responses.WriteSuccess(w, views)
	}
}
