package model

import (
	"strings"
	"time"
)

// EventSpend is the amount a person spent at one event.
type EventSpend struct {
	Spent       int64     `json:"spent" bson:"spent"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// GenreVisits counts the distinct events of a genre a person checked in at.
// EventIDs is the dedup set; NrOfTimes equals its length unless the record
// predates dedup.
type GenreVisits struct {
	NrOfTimes int64    `json:"nrOfTimes" bson:"nrOfTimes"`
	EventIDs  []string `json:"eventIds" bson:"eventIds"`
}

// Has reports whether eventID already contributed to the genre.
func (g GenreVisits) Has(eventID string) bool {
	for _, id := range g.EventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// Contact is the name and contact snapshot copied into tables and guests.
type Contact struct {
	Name            string `json:"name" bson:"name"`
	PhoneNumber     string `json:"phoneNumber" bson:"phoneNumber"`
	PhoneNumberE164 string `json:"phoneNumberE164" bson:"phoneNumberE164"`
	Email           string `json:"email" bson:"email"`
}

// SpendingProfile is the spending and loyalty shape shared by the
// venue-scoped Guest and the global User.
type SpendingProfile struct {
	UserID          string                 `json:"userId" bson:"userId"`
	Name            string                 `json:"name" bson:"name"`
	PhoneNumber     string                 `json:"phoneNumber" bson:"phoneNumber"`
	PhoneNumberE164 string                 `json:"phoneNumberE164" bson:"phoneNumberE164"`
	Email           string                 `json:"email" bson:"email"`
	TotalSpent      int64                  `json:"totalSpent" bson:"totalSpent"`
	LastSpent       int64                  `json:"lastSpent" bson:"lastSpent"`
	EventSpending   map[string]EventSpend  `json:"eventSpending,omitempty" bson:"eventSpending,omitempty"`
	VisitedGenres   map[string]GenreVisits `json:"visitedGenres,omitempty" bson:"visitedGenres,omitempty"`
	CreatedAt       time.Time              `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt" bson:"updatedAt"`
}

// Contact returns the contact snapshot of the profile.
func (p SpendingProfile) Contact() Contact {
	return Contact{
		Name:            p.Name,
		PhoneNumber:     p.PhoneNumber,
		PhoneNumberE164: p.PhoneNumberE164,
		Email:           p.Email,
	}
}

// Guest is the venue-scoped copy of a person's spending, stored under
// companies/{companyId}/guests/{userId}.
type Guest struct {
	SpendingProfile `bson:",inline"`
	CompanyID       string `json:"companyId" bson:"companyId"`
}

// User is the platform-wide identity, stored under users/{userId}.
type User struct {
	SpendingProfile `bson:",inline"`
}

var genreKeyReplacer = strings.NewReplacer(".", "_", "$", "_", "/", "_")

// GenreKey turns a genre tag into a map key usable in dotted field paths.
// The tag keeps its case; surrounding space is trimmed and the characters
// that would split or escape a field path become underscores.
func GenreKey(genre string) string {
	return genreKeyReplacer.Replace(strings.TrimSpace(genre))
}
