package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeDuplicate     Code = "DUPLICATE"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeFreezeTimeout Code = "FREEZE_TIMEOUT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how callers react to a code. Retryable errors are
// handed back to the broker for redelivery; reportable errors produce an
// operator-visible failure report.
type Metadata struct {
	Retryable  bool
	Reportable bool
	Summary    string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:  false,
		Reportable: true,
		Summary:    "validation failed",
	},
	CodeNotFound: {
		Retryable:  false,
		Reportable: false,
		Summary:    "resource not found",
	},
	CodeDuplicate: {
		Retryable:  false,
		Reportable: false,
		Summary:    "already recorded",
	},
	CodeStateConflict: {
		Retryable:  false,
		Reportable: true,
		Summary:    "state transition disallowed",
	},
	CodeFreezeTimeout: {
		Retryable:  false,
		Reportable: true,
		Summary:    "surveyor did not finish transacting",
	},
	CodeInternal: {
		Retryable:  true,
		Reportable: false,
		Summary:    "internal error",
	},
	CodeDependency: {
		Retryable:  true,
		Reportable: false,
		Summary:    "dependency unavailable",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err) == CodeValidation
}

// IsRetryable reports whether err should be redelivered by the broker.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Retryable
}
