package tablestate

import (
	"errors"
	"fmt"
)

var (
	ErrOccupied      = errors.New("table is occupied")
	ErrNotOccupied   = errors.New("table is not occupied")
	ErrLimitExceeded = errors.New("check-in limit exceeded")
	ErrInvalid       = errors.New("invalid transition")
)

// OccupiedError names the guest currently seated at the table.
type OccupiedError struct {
	Occupant string
}

func (e *OccupiedError) Error() string {
	return fmt.Sprintf("table is occupied by %s", e.Occupant)
}

func (e *OccupiedError) Unwrap() error { return ErrOccupied }

// LimitError reports which count would exceed its booked limit.
type LimitError struct {
	Field string
	Limit int64
	Got   int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s would be %d, limit is %d", e.Field, e.Got, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// InvalidError rejects a transition because of a bad input field.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }
