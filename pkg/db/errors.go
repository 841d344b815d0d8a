package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

const (
	uniqueViolationCode     = "23505"
	notNullViolationCode    = "23502"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	dataExceptionClass      = "22"
)

// IsUniqueViolation reports whether err is a unique/primary key conflict.
// When constraintName is provided, only conflicts on that constraint match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == uniqueViolationCode &&
			(constraintName == "" || pgxErr.ConstraintName == constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode &&
			(constraintName == "" || pqErr.Constraint == constraintName)
	}

	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// ErrorCode classifies a store error. Data exceptions (class 22) and
// not-null, foreign key and check violations fail the same way on every
// retry, so they map to CodeValidation. Everything else is a dependency
// failure worth retrying.
func ErrorCode(err error) pkgerrors.Code {
	if isPermanent(err) {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func isPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return permanentCode(pgxErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return permanentCode(string(pqErr.Code))
	}

	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "NOT NULL constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}

func permanentCode(code string) bool {
	switch code {
	case notNullViolationCode, foreignKeyViolationCode, checkViolationCode:
		return true
	}
	return strings.HasPrefix(code, dataExceptionClass)
}
