package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Data    any        `json:"data,omitempty"`
}

// ErrorBody describes a failed call. Occupant is set on booking conflicts
// and Limit when a check-in would exceed the guest's allowance.
type ErrorBody struct {
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	Occupant  string `json:"occupant,omitempty"`
	Limit     *int64 `json:"limit,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}
