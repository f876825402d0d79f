package model

import "time"

// GuestListGuest is one entry of an event guest list. The booked counts are
// set when the list is imported; only the checked-in counts change here.
type GuestListGuest struct {
	ID              string     `json:"id" bson:"id"`
	Name            string     `json:"name" bson:"name"`
	UserID          string     `json:"userId,omitempty" bson:"userId,omitempty"`
	NormalGuests    int64      `json:"normalGuests" bson:"normalGuests"`
	FreeGuests      int64      `json:"freeGuests" bson:"freeGuests"`
	NormalCheckedIn int64      `json:"normalCheckedIn" bson:"normalCheckedIn"`
	FreeCheckedIn   int64      `json:"freeCheckedIn" bson:"freeCheckedIn"`
	Logs            []LogEntry `json:"logs,omitempty" bson:"logs,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// TotalCheckedIn is the number of arrived guests across both kinds.
func (g *GuestListGuest) TotalCheckedIn() int64 {
	return g.NormalCheckedIn + g.FreeCheckedIn
}

// Event is the subset of event metadata the engine reads.
type Event struct {
	ID       string    `json:"id" bson:"id"`
	Name     string    `json:"name" bson:"name"`
	Genres   []string  `json:"genres" bson:"genres"`
	StartsAt time.Time `json:"startsAt,omitempty" bson:"startsAt,omitempty"`
}
