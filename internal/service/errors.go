package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/tablestate"
)

// Kind classifies service failures for the transport layer.
type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindLimitExceeded Kind = "limit_exceeded"
	KindInternal      Kind = "internal"
)

// Sentinels for errors.Is against a kind.
var (
	ErrUnauthorized  = errors.New(string(KindUnauthorized))
	ErrValidation    = errors.New(string(KindValidation))
	ErrNotFound      = errors.New(string(KindNotFound))
	ErrConflict      = errors.New(string(KindConflict))
	ErrLimitExceeded = errors.New(string(KindLimitExceeded))
	ErrInternal      = errors.New(string(KindInternal))
)

var kindSentinels = map[Kind]error{
	KindUnauthorized:  ErrUnauthorized,
	KindValidation:    ErrValidation,
	KindNotFound:      ErrNotFound,
	KindConflict:      ErrConflict,
	KindLimitExceeded: ErrLimitExceeded,
	KindInternal:      ErrInternal,
}

// Error is the error type returned by every exported service operation.
// Field is set for validation errors, Occupant for conflicts and Limit for
// exceeded check-ins.
type Error struct {
	Kind     Kind
	Message  string
	Field    string
	Occupant string
	Limit    *int64
	Err      error
}

func (e *Error) Error() string {
	if e.Field != "" && e.Kind == KindValidation {
		return fmt.Sprintf("%s: %s", e.Message, e.Field)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Retryable reports whether the caller may retry with fresh state.
func (e *Error) Retryable() bool { return e.Kind == KindConflict }

func validationErr(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

func notFoundErr(msg string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: cause}
}

func conflictErr(msg, occupant string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Occupant: occupant}
}

// Unauthorized builds the error returned for a missing or invalid caller.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Validation builds a validation error echoing field.
func Validation(field, msg string) *Error {
	return validationErr(field, msg)
}

// translate maps errors of the lower layers onto *Error.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var occ *tablestate.OccupiedError
	if errors.As(err, &occ) {
		return conflictErr("table is already booked by "+occ.Occupant, occ.Occupant)
	}
	var lim *tablestate.LimitError
	if errors.As(err, &lim) {
		limit := lim.Limit
		return &Error{Kind: KindLimitExceeded, Message: lim.Error(), Field: lim.Field, Limit: &limit, Err: err}
	}
	var inv *tablestate.InvalidError
	if errors.As(err, &inv) {
		return &Error{Kind: KindValidation, Message: inv.Reason, Field: inv.Field, Err: err}
	}
	switch {
	case errors.Is(err, tablestate.ErrNotOccupied):
		return &Error{Kind: KindValidation, Message: "table is not occupied", Field: "tableName", Err: err}
	case errors.Is(err, repository.ErrLayoutNotFound),
		errors.Is(err, repository.ErrTableNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrGuestNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrListGuestNotFound):
		return notFoundErr(err.Error(), err)
	case errors.Is(err, docstore.ErrTxAborted):
		return &Error{Kind: KindConflict, Message: "concurrent modification, retry with fresh state", Err: err}
	case errors.Is(err, docstore.ErrInvalidPath):
		return &Error{Kind: KindValidation, Message: "invalid identifier", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
