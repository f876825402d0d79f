package tablestate

import "github.com/iliyamo/venue-table-reservation/internal/model"

// field gives uniform access to one diffable Table field.
type field struct {
	name string
	str  func(*model.Table) *string
	num  func(*model.Table) *int64
}

func (f field) value(t *model.Table) model.Value {
	if f.str != nil {
		return model.StringValue(*f.str(t))
	}
	return model.NumberValue(*f.num(t))
}

// tableFields lists every field the audit trail tracks, in a fixed order.
var tableFields = []field{
	{name: "guestName", str: func(t *model.Table) *string { return &t.GuestName }},
	{name: "phoneNumber", str: func(t *model.Table) *string { return &t.PhoneNumber }},
	{name: "phoneNumberE164", str: func(t *model.Table) *string { return &t.PhoneNumberE164 }},
	{name: "email", str: func(t *model.Table) *string { return &t.Email }},
	{name: "nrOfGuests", num: func(t *model.Table) *int64 { return &t.NrOfGuests }},
	{name: "tableLimit", num: func(t *model.Table) *int64 { return &t.TableLimit }},
	{name: "tableSpent", num: func(t *model.Table) *int64 { return &t.TableSpent }},
	{name: "tableCheckedIn", num: func(t *model.Table) *int64 { return &t.TableCheckedIn }},
	{name: "timeFrom", str: func(t *model.Table) *string { return &t.TimeFrom }},
	{name: "timeTo", str: func(t *model.Table) *string { return &t.TimeTo }},
	{name: "comment", str: func(t *model.Table) *string { return &t.Comment }},
	{name: "bookedBy", str: func(t *model.Table) *string { return &t.BookedBy }},
	{name: "userId", str: func(t *model.Table) *string { return &t.UserID }},
	{name: "tableStaff", str: func(t *model.Table) *string { return &t.TableStaff }},
}

// diff returns the changes between before and after, keyed by field name.
func diff(before, after *model.Table) map[string]model.Change {
	changes := map[string]model.Change{}
	for _, f := range tableFields {
		from, to := f.value(before), f.value(after)
		if from != to {
			changes[f.name] = model.Change{From: from, To: to}
		}
	}
	return changes
}
