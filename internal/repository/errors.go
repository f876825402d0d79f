// Package repository maps the engine's documents onto docstore paths.
// The sentinel errors below let higher layers tell missing documents apart
// without knowing which adapter is underneath.
package repository

import "errors"

var (
	ErrLayoutNotFound    = errors.New("layout not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrGuestNotFound     = errors.New("guest not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrSummaryNotFound   = errors.New("table summary not found")
	ErrListGuestNotFound = errors.New("guest list guest not found")
	ErrOutboxNotFound    = errors.New("outbox entry not found")
)

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate table name inside a layout.
var ErrConflict = errors.New("conflict")
