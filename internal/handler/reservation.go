// Package handler exposes the reservation engine over JSON RPC-style
// endpoints. Every handler binds and validates its body, runs the service
// call as the authenticated actor and wraps the result in a Response.
// Failures are returned as errors and rendered by the server's error
// handler.
package handler

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/service"
	"github.com/iliyamo/venue-table-reservation/internal/validator"
)

// ActorKey is the context key the auth middleware stores the caller under.
const ActorKey = "actor"

// ReservationService is the engine surface the handlers need.
type ReservationService interface {
	BookTable(ctx context.Context, actor service.Actor, req service.BookRequest) (*service.BookResult, error)
	UpdateTable(ctx context.Context, actor service.Actor, req service.UpdateRequest) (*service.UpdateResult, error)
	CancelReservation(ctx context.Context, actor service.Actor, ref service.TableRef) (*service.VacateResult, error)
	ResellTable(ctx context.Context, actor service.Actor, ref service.TableRef) (*service.VacateResult, error)
	MoveTable(ctx context.Context, actor service.Actor, req service.MoveRequest) (*service.MoveResult, error)
	CheckInGuest(ctx context.Context, actor service.Actor, req service.CheckInRequest) (*service.CheckInResult, error)
	GetTableSummary(ctx context.Context, ref service.EventRef) (*model.TableSummary, error)
	RecomputeTableSummary(ctx context.Context, ref service.EventRef) (*model.TableSummary, error)
}

type ReservationHandler struct {
	svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// RegisterRoutes mounts the operations on g, which is expected to carry the
// auth middleware.
func (h *ReservationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/bookTable", h.BookTable)
	g.POST("/updateTable", h.UpdateTable)
	g.POST("/cancelReservation", h.CancelReservation)
	g.POST("/resellTable", h.ResellTable)
	g.POST("/moveTable", h.MoveTable)
	g.POST("/checkInGuest", h.CheckInGuest)
	g.POST("/getTableSummary", h.GetTableSummary)
	g.POST("/recomputeTableSummary", h.RecomputeTableSummary)
}

func (h *ReservationHandler) BookTable(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req service.BookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BookTable(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *ReservationHandler) UpdateTable(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req service.UpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.UpdateTable(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	return h.vacate(c, h.svc.CancelReservation)
}

func (h *ReservationHandler) ResellTable(c echo.Context) error {
	return h.vacate(c, h.svc.ResellTable)
}

func (h *ReservationHandler) vacate(c echo.Context, op func(context.Context, service.Actor, service.TableRef) (*service.VacateResult, error)) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var ref service.TableRef
	if err := bind(c, &ref); err != nil {
		return err
	}
	res, err := op(c.Request().Context(), actor, ref)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *ReservationHandler) MoveTable(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req service.MoveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.MoveTable(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *ReservationHandler) CheckInGuest(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req service.CheckInRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.CheckInGuest(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *ReservationHandler) GetTableSummary(c echo.Context) error {
	return h.summary(c, h.svc.GetTableSummary)
}

func (h *ReservationHandler) RecomputeTableSummary(c echo.Context) error {
	return h.summary(c, h.svc.RecomputeTableSummary)
}

func (h *ReservationHandler) summary(c echo.Context, op func(context.Context, service.EventRef) (*model.TableSummary, error)) error {
	if _, err := actorFrom(c); err != nil {
		return err
	}
	var ref service.EventRef
	if err := bind(c, &ref); err != nil {
		return err
	}
	sum, err := op(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return ok(c, sum)
}

// actorFrom returns the caller the auth middleware resolved.
func actorFrom(c echo.Context) (service.Actor, error) {
	a, found := c.Get(ActorKey).(service.Actor)
	if !found || a.ID == "" {
		return service.Actor{}, service.Unauthorized("missing caller identity")
	}
	return a, nil
}

// bind decodes the JSON body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return service.Validation("body", "invalid request body")
	}
	if err := validator.Validate(c.Request().Context(), req); err != nil {
		var fe *validator.FieldError
		if errors.As(err, &fe) {
			return service.Validation(fe.Field, fe.Message)
		}
		return err
	}
	return nil
}
