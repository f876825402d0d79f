package service

import (
	"context"
	"errors"

	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

// EventRef addresses one event.
type EventRef struct {
	CompanyID string `json:"companyId" validate:"required,docid"`
	EventID   string `json:"eventId" validate:"required,docid"`
}

func (r EventRef) validate() error {
	return requireIDs(map[string]string{"companyId": r.CompanyID, "eventId": r.EventID})
}

// GetTableSummary returns the event's summary. An event nobody has booked
// yet reports zeros.
func (s *ReservationService) GetTableSummary(ctx context.Context, ref EventRef) (*model.TableSummary, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	sum, err := s.summaries.Get(ctx, ref.CompanyID, ref.EventID)
	if errors.Is(err, repository.ErrSummaryNotFound) {
		return &model.TableSummary{ID: model.SummaryID}, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return sum, nil
}

// RecomputeTableSummary rebuilds the event's summary from its layouts.
func (s *ReservationService) RecomputeTableSummary(ctx context.Context, ref EventRef) (*model.TableSummary, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	sum, err := s.summary.Recompute(ctx, ref.CompanyID, ref.EventID)
	if err != nil {
		return nil, translate(err)
	}
	return sum, nil
}
