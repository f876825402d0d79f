// Package docstore defines the document store contract the reservation engine
// runs on. Documents are addressed by slash-separated paths in the
// collection/document/collection/document form, and mutated either whole
// (Set) or through dotted field paths (Update, Upsert).
//
// Three adapters implement Store: memstore (tests and local runs),
// mongostore and mysqlstore.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrTxAborted is returned when a transaction could not commit after
	// exhausting its retries because of concurrent writers.
	ErrTxAborted = errors.New("transaction aborted by concurrent modification")
	// ErrInvalidPath is returned for malformed document or field paths.
	ErrInvalidPath = errors.New("invalid document path")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Doc builds a Ref for id inside collection.
func Doc(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

// Path returns the full document path.
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Validate checks that the ref points at a document rather than a collection.
func (r Ref) Validate() error {
	if r.ID == "" || strings.Contains(r.ID, "/") {
		return ErrInvalidPath
	}
	return ValidateCollection(r.Collection)
}

// Collection joins path segments into a collection path. The number of
// segments must be odd.
func Collection(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidateCollection checks that path has an odd number of non-empty segments.
func ValidateCollection(path string) error {
	parts := strings.Split(path, "/")
	if len(parts)%2 == 0 {
		return ErrInvalidPath
	}
	for _, p := range parts {
		if p == "" {
			return ErrInvalidPath
		}
	}
	return nil
}

// OpKind enumerates field-level mutations.
type OpKind int

const (
	OpSet OpKind = iota
	OpIncrement
	OpDelete
	OpAddToSet
)

// Op is a single field mutation addressed by a dotted path such as
// "eventSpending.evt-1.spent".
type Op struct {
	Path  string
	Kind  OpKind
	Value any
}

// Set replaces the value at path.
func Set(path string, value any) Op { return Op{Path: path, Kind: OpSet, Value: value} }

// Inc atomically adds delta to the numeric value at path, treating a missing
// field as zero.
func Inc(path string, delta int64) Op { return Op{Path: path, Kind: OpIncrement, Value: delta} }

// Delete removes the field at path.
func Delete(path string) Op { return Op{Path: path, Kind: OpDelete} }

// AddToSet appends value to the array at path unless it is already present.
func AddToSet(path string, value any) Op { return Op{Path: path, Kind: OpAddToSet, Value: value} }

// Cmp selects how a Where compares a field.
type Cmp int

const (
	CmpEq Cmp = iota
	CmpLt
	CmpLte
)

// Where is a filter on a field: equality, membership when Values is set, or
// an ordering comparison against numbers or times.
type Where struct {
	Path   string
	Cmp    Cmp
	Value  any
	Values []any
}

// Eq matches documents whose field equals value.
func Eq(path string, value any) Where { return Where{Path: path, Value: value} }

// In matches documents whose field equals any of values.
func In(path string, values ...any) Where { return Where{Path: path, Values: values} }

// Lt matches documents whose field is below value.
func Lt(path string, value any) Where { return Where{Path: path, Cmp: CmpLt, Value: value} }

// Lte matches documents whose field is at or below value.
func Lte(path string, value any) Where { return Where{Path: path, Cmp: CmpLte, Value: value} }

// WriteKind enumerates batch write kinds.
type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteUpsert
	WriteDelete
)

// Write is one element of a Batch.
type Write struct {
	Kind WriteKind
	Ref  Ref
	Doc  any
	Ops  []Op
}

func SetWrite(ref Ref, doc any) Write       { return Write{Kind: WriteSet, Ref: ref, Doc: doc} }
func UpdateWrite(ref Ref, ops ...Op) Write  { return Write{Kind: WriteUpdate, Ref: ref, Ops: ops} }
func UpsertWrite(ref Ref, ops ...Op) Write  { return Write{Kind: WriteUpsert, Ref: ref, Ops: ops} }
func DeleteWrite(ref Ref) Write             { return Write{Kind: WriteDelete, Ref: ref} }

// Reader is the read side shared by stores and transactions.
type Reader interface {
	Get(ctx context.Context, ref Ref, dst any) error
	List(ctx context.Context, collection string, dst any, where ...Where) error
}

// Tx is a read-modify-write transaction. Reads observe a consistent state;
// writes become visible atomically when the transaction function returns nil.
type Tx interface {
	Reader
	Set(ref Ref, doc any) error
	Update(ref Ref, ops ...Op) error
	Upsert(ref Ref, ops ...Op) error
	Delete(ref Ref) error
}

// Store is the document store contract.
type Store interface {
	Reader
	// Set creates or replaces a whole document.
	Set(ctx context.Context, ref Ref, doc any) error
	// Update applies ops atomically; ErrNotFound if the document is missing.
	Update(ctx context.Context, ref Ref, ops ...Op) error
	// Upsert applies ops atomically, creating the document when missing.
	Upsert(ctx context.Context, ref Ref, ops ...Op) error
	Delete(ctx context.Context, ref Ref) error
	// RunTransaction runs fn with transactional semantics. fn may be invoked
	// more than once when the store detects a conflicting writer, so it must
	// not have side effects outside tx.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	// Batch applies all writes atomically without a read phase.
	Batch(ctx context.Context, writes ...Write) error
	Close(ctx context.Context) error
}
