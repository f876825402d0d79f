package repository

import (
	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
)

const (
	companiesCollection = "companies"
	usersCollection     = "users"
	outboxCollection    = "reservationOutbox"
)

// LayoutsCollection holds the layouts of an event and its TableSummary.
func LayoutsCollection(companyID, eventID string) string {
	return docstore.Collection(companiesCollection, companyID, "events", eventID, "layouts")
}

func EventRef(companyID, eventID string) docstore.Ref {
	return docstore.Doc(docstore.Collection(companiesCollection, companyID, "events"), eventID)
}

func LayoutRef(companyID, eventID, layoutID string) docstore.Ref {
	return docstore.Doc(LayoutsCollection(companyID, eventID), layoutID)
}

func SummaryRef(companyID, eventID string) docstore.Ref {
	return docstore.Doc(LayoutsCollection(companyID, eventID), model.SummaryID)
}

func GuestRef(companyID, userID string) docstore.Ref {
	return docstore.Doc(docstore.Collection(companiesCollection, companyID, "guests"), userID)
}

func UserRef(userID string) docstore.Ref {
	return docstore.Doc(usersCollection, userID)
}

func ListGuestRef(companyID, eventID, guestListID, guestID string) docstore.Ref {
	return docstore.Doc(docstore.Collection(companiesCollection, companyID, "events", eventID, "guestLists", guestListID, "guests"), guestID)
}

func OutboxRef(entryID string) docstore.Ref {
	return docstore.Doc(outboxCollection, entryID)
}
