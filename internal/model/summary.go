package model

import "time"

// SummaryID is the document id of the per-event TableSummary, stored next
// to the layouts of the event.
const SummaryID = "tableSummary"

// TableSummary aggregates every occupied table of an event.
type TableSummary struct {
	ID              string     `json:"id" bson:"id"`
	TotalBooked     int64      `json:"totalBooked" bson:"totalBooked"`
	TotalCheckedIn  int64      `json:"totalCheckedIn" bson:"totalCheckedIn"`
	TotalGuests     int64      `json:"totalGuests" bson:"totalGuests"`
	TotalTableLimit int64      `json:"totalTableLimit" bson:"totalTableLimit"`
	TotalTableSpent int64      `json:"totalTableSpent" bson:"totalTableSpent"`
	TotalTables     int64      `json:"totalTables" bson:"totalTables"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	RecomputedAt    *time.Time `json:"recomputedAt,omitempty" bson:"recomputedAt,omitempty"`
}
