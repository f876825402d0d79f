package model

import "time"

// MutationKind names the reservation operation an outbox entry records.
type MutationKind string

const (
	MutationBook    MutationKind = "book"
	MutationUpdate  MutationKind = "update"
	MutationCancel  MutationKind = "cancel"
	MutationResell  MutationKind = "resell"
	MutationMove    MutationKind = "move"
	MutationCheckIn MutationKind = "checkin"
)

// OutboxStatus tracks an entry through denormalization and reconciliation.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxApplied    OutboxStatus = "applied"
	OutboxPartial    OutboxStatus = "partial"
	OutboxPublished  OutboxStatus = "published"
	OutboxReconciled OutboxStatus = "reconciled"
	// OutboxFailed is terminal: the relay stopped retrying the entry.
	OutboxFailed OutboxStatus = "failed"
)

// OutboxEntry is written in the same transaction as the primary mutation.
// It carries everything needed to re-apply the secondary writes, and one
// flag per secondary write that is set in the same transaction as that
// write, so a step is never applied twice.
//
// Fields:
//  SpentDelta        – amount added to eventSpending for the event.
//  DropEventSpending – cancellation: remove the event from spending maps.
//  CreditGenres      – a check-in increase that earns genre credit.
//  SummaryDelta      – incremental summary change; nil when the operation
//                      leaves the summary alone.
//  NeedsSpending     – Guest/User spending steps apply to this entry.
//  SupersededBy      – id of the cancellation that retired this entry's
//                      unapplied spending steps.
//  Attempts          – how often the relay handed the entry to the worker.
//  NextAttemptAt     – the relay leaves the entry alone until then.
type OutboxEntry struct {
	ID                string        `json:"id" bson:"id"`
	Kind              MutationKind  `json:"kind" bson:"kind"`
	CompanyID         string        `json:"companyId" bson:"companyId"`
	EventID           string        `json:"eventId" bson:"eventId"`
	LayoutID          string        `json:"layoutId,omitempty" bson:"layoutId,omitempty"`
	TableName         string        `json:"tableName,omitempty" bson:"tableName,omitempty"`
	GuestListID       string        `json:"guestListId,omitempty" bson:"guestListId,omitempty"`
	GuestID           string        `json:"guestId,omitempty" bson:"guestId,omitempty"`
	UserID            string        `json:"userId,omitempty" bson:"userId,omitempty"`
	Contact           *Contact      `json:"contact,omitempty" bson:"contact,omitempty"`
	Actor             string        `json:"actor" bson:"actor"`
	SpentDelta        int64         `json:"spentDelta" bson:"spentDelta"`
	DropEventSpending bool          `json:"dropEventSpending" bson:"dropEventSpending"`
	CreditGenres      bool          `json:"creditGenres" bson:"creditGenres"`
	SummaryDelta      *SummaryDelta `json:"summaryDelta,omitempty" bson:"summaryDelta,omitempty"`
	NeedsSpending     bool          `json:"needsSpending" bson:"needsSpending"`
	SummaryApplied    bool          `json:"summaryApplied" bson:"summaryApplied"`
	GuestApplied      bool          `json:"guestApplied" bson:"guestApplied"`
	UserApplied       bool          `json:"userApplied" bson:"userApplied"`
	GenresApplied     bool          `json:"genresApplied" bson:"genresApplied"`
	SupersededBy      string        `json:"supersededBy,omitempty" bson:"supersededBy,omitempty"`
	Attempts          int           `json:"attempts" bson:"attempts"`
	NextAttemptAt     time.Time     `json:"nextAttemptAt" bson:"nextAttemptAt"`
	Status            OutboxStatus  `json:"status" bson:"status"`
	Error             string        `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// SummaryDelta is a signed change of the TableSummary counters.
type SummaryDelta struct {
	Booked    int64 `json:"booked" bson:"booked"`
	CheckedIn int64 `json:"checkedIn" bson:"checkedIn"`
	Guests    int64 `json:"guests" bson:"guests"`
	Limit     int64 `json:"limit" bson:"limit"`
	Spent     int64 `json:"spent" bson:"spent"`
}

// IsZero reports whether applying d changes nothing.
func (d SummaryDelta) IsZero() bool {
	return d == SummaryDelta{}
}

// Settled reports whether every secondary write of e has been applied.
func (e *OutboxEntry) Settled() bool {
	if e.SummaryDelta != nil && !e.SummaryApplied {
		return false
	}
	if e.NeedsSpending && (!e.GuestApplied || !e.UserApplied) {
		return false
	}
	if e.CreditGenres && !e.GenresApplied {
		return false
	}
	return true
}
