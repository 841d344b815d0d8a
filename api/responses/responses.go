package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

var statusByCode = map[pkgerrors.Code]int{
	pkgerrors.CodeValidation:    http.StatusBadRequest,
	pkgerrors.CodeNotFound:      http.StatusNotFound,
	pkgerrors.CodeDuplicate:     http.StatusConflict,
	pkgerrors.CodeStateConflict: http.StatusConflict,
	pkgerrors.CodeFreezeTimeout: http.StatusGatewayTimeout,
	pkgerrors.CodeDependency:    http.StatusServiceUnavailable,
	pkgerrors.CodeInternal:      http.StatusInternalServerError,
}

// StatusFor maps an error code onto its HTTP status.
func StatusFor(code pkgerrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Validation and not-found
// messages are passed through; everything else uses the code summary.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())
	msg := meta.Summary
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}
	if typed.Code() == pkgerrors.CodeValidation {
		payload.Error.Details = typed.Details()
	}

	status := StatusFor(typed.Code())
	if logg != nil && status >= http.StatusInternalServerError {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		logg.Error(ctx, "request.error", err)
	}

	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
