package service

import (
	"context"
	"strings"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/tablestate"
)

// MoveRequest relocates the booking at the source table.
type MoveRequest struct {
	CompanyID            string `json:"companyId" validate:"required,docid"`
	EventID              string `json:"eventId" validate:"required,docid"`
	SourceLayoutID       string `json:"sourceLayoutId" validate:"required,docid"`
	SourceTableName      string `json:"sourceTableName" validate:"required"`
	DestinationLayoutID  string `json:"destinationLayoutId" validate:"required,docid"`
	DestinationTableName string `json:"destinationTableName" validate:"required"`
}

// MoveResult is the output of MoveTable.
type MoveResult struct {
	Operation   tablestate.Operation `json:"operation"`
	Source      model.Table          `json:"source"`
	Destination model.Table          `json:"destination"`
}

// MoveTable moves a booking to an empty table or swaps it with the booking
// at an occupied one. Both layouts are re-read and written in one
// transaction, so a booking that lands on either table meanwhile restarts
// the operation.
func (s *ReservationService) MoveTable(ctx context.Context, actor Actor, req MoveRequest) (*MoveResult, error) {
	if err := requireIDs(map[string]string{
		"companyId":           req.CompanyID,
		"eventId":             req.EventID,
		"sourceLayoutId":      req.SourceLayoutID,
		"destinationLayoutId": req.DestinationLayoutID,
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SourceTableName) == "" {
		return nil, validationErr("sourceTableName", "Field is required")
	}
	if strings.TrimSpace(req.DestinationTableName) == "" {
		return nil, validationErr("destinationTableName", "Field is required")
	}

	var (
		res   MoveResult
		entry *model.OutboxEntry
	)
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		srcLayout, err := s.layouts.GetTx(ctx, tx, req.CompanyID, req.EventID, req.SourceLayoutID)
		if err != nil {
			return err
		}
		dstLayout := srcLayout
		if req.DestinationLayoutID != req.SourceLayoutID {
			if dstLayout, err = s.layouts.GetTx(ctx, tx, req.CompanyID, req.EventID, req.DestinationLayoutID); err != nil {
				return err
			}
		}
		src, err := findTable(srcLayout, req.SourceTableName)
		if err != nil {
			return err
		}
		dst, err := findTable(dstLayout, req.DestinationTableName)
		if err != nil {
			return err
		}

		op, err := tablestate.Relocate(
			tablestate.Slot{LayoutID: srcLayout.ID, Table: src},
			tablestate.Slot{LayoutID: dstLayout.ID, Table: dst},
			actor.DisplayName(), s.now(),
		)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.layouts.SaveItemsTx(tx, req.CompanyID, req.EventID, srcLayout, now); err != nil {
			return err
		}
		if dstLayout != srcLayout {
			if err := s.layouts.SaveItemsTx(tx, req.CompanyID, req.EventID, dstLayout, now); err != nil {
				return err
			}
		}
		res = MoveResult{Operation: op, Source: *src, Destination: *dst}

		// both tables stay in the same event, so the summary does not move
		entry = s.newEntry(model.MutationMove, req.CompanyID, req.EventID, actor)
		entry.LayoutID = req.DestinationLayoutID
		entry.TableName = req.DestinationTableName
		entry.UserID = dst.UserID
		return s.outbox.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info().Str("company_id", req.CompanyID).Str("event_id", req.EventID).
		Str("operation", string(res.Operation)).
		Str("source", req.SourceLayoutID+"/"+req.SourceTableName).
		Str("destination", req.DestinationLayoutID+"/"+req.DestinationTableName).
		Str("actor", actor.DisplayName()).Msg("table relocated")
	s.Settle(ctx, entry.ID)
	return &res, nil
}
