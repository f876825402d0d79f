package tablestate

import (
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/model"
)

// CheckInMode selects how CheckInRequest counts are interpreted.
type CheckInMode string

const (
	// CheckInIncrement adds signed deltas to the current counts, so rapid
	// repeated taps do not need the latest server value.
	CheckInIncrement CheckInMode = "increment"
	// CheckInSet overwrites the counts, for manual correction.
	CheckInSet CheckInMode = "set"
)

// CheckInRequest holds deltas (increment) or absolute values (set). A nil
// count is a zero delta in increment mode and "keep" in set mode.
type CheckInRequest struct {
	Mode   CheckInMode
	Normal *int64
	Free   *int64
}

// CheckInResult reports the totals around a successful check-in.
type CheckInResult struct {
	PreviousTotal int64
	Total         int64
}

// Increased reports whether more guests are checked in than before.
func (r CheckInResult) Increased() bool {
	return r.Total > r.PreviousTotal
}

// CheckIn applies req to g. On error g is left untouched.
func CheckIn(g *model.GuestListGuest, req CheckInRequest, actor string, now time.Time) (CheckInResult, error) {
	normal, free := g.NormalCheckedIn, g.FreeCheckedIn
	switch req.Mode {
	case CheckInIncrement:
		if req.Normal != nil {
			normal += *req.Normal
		}
		if req.Free != nil {
			free += *req.Free
		}
	case CheckInSet:
		if req.Normal != nil {
			normal = *req.Normal
		}
		if req.Free != nil {
			free = *req.Free
		}
	default:
		return CheckInResult{}, &InvalidError{Field: "action", Reason: "must be increment or set"}
	}

	if normal < 0 {
		return CheckInResult{}, &InvalidError{Field: "normalCheckedIn", Reason: "must not be negative"}
	}
	if free < 0 {
		return CheckInResult{}, &InvalidError{Field: "freeCheckedIn", Reason: "must not be negative"}
	}
	if normal > g.NormalGuests {
		return CheckInResult{}, &LimitError{Field: "normalCheckedIn", Limit: g.NormalGuests, Got: normal}
	}
	if free > g.FreeGuests {
		return CheckInResult{}, &LimitError{Field: "freeCheckedIn", Limit: g.FreeGuests, Got: free}
	}

	res := CheckInResult{PreviousTotal: g.TotalCheckedIn()}
	changes := map[string]model.Change{}
	if normal != g.NormalCheckedIn {
		changes["normalCheckedIn"] = model.Change{From: model.NumberValue(g.NormalCheckedIn), To: model.NumberValue(normal)}
	}
	if free != g.FreeCheckedIn {
		changes["freeCheckedIn"] = model.Change{From: model.NumberValue(g.FreeCheckedIn), To: model.NumberValue(free)}
	}
	g.NormalCheckedIn, g.FreeCheckedIn = normal, free
	res.Total = g.TotalCheckedIn()
	if len(changes) > 0 {
		g.Logs = append(g.Logs, model.LogEntry{Action: model.ActionCheckedIn, Actor: actor, Timestamp: now, Changes: changes})
		g.UpdatedAt = now
	}
	return res, nil
}
