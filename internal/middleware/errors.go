package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/handler"
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindUnauthorized:  http.StatusUnauthorized,
	service.KindValidation:    http.StatusBadRequest,
	service.KindNotFound:      http.StatusNotFound,
	service.KindConflict:      http.StatusConflict,
	service.KindLimitExceeded: http.StatusUnprocessableEntity,
	service.KindInternal:      http.StatusInternalServerError,
}

// ErrorHandler renders every error returned by a handler or middleware as a
// Response envelope.
func ErrorHandler(logger *zerolog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := render(err)
		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func render(err error) (int, handler.Response) {
	var se *service.Error
	if errors.As(err, &se) {
		code, ok := kindStatus[se.Kind]
		if !ok {
			code = http.StatusInternalServerError
		}
		return code, handler.Response{
			Message: se.Error(),
			Error: &handler.ErrorBody{
				Kind:      string(se.Kind),
				Field:     se.Field,
				Occupant:  se.Occupant,
				Limit:     se.Limit,
				Retryable: se.Retryable(),
			},
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, handler.Response{Message: msg, Error: &handler.ErrorBody{Kind: httpKind(he.Code)}}
	}

	return http.StatusInternalServerError, handler.Response{
		Message: "internal error",
		Error:   &handler.ErrorBody{Kind: string(service.KindInternal)},
	}
}

func httpKind(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return string(service.KindUnauthorized)
	case http.StatusBadRequest:
		return string(service.KindValidation)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return string(service.KindNotFound)
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	}
	if code >= http.StatusInternalServerError {
		return string(service.KindInternal)
	}
	return "error"
}
