package apperr

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Error *Error `json:"error"`
}

// HTTPErrorHandler renders workflow errors and echo errors in the same envelope.
// Foreign errors become a 500 whose message does not leak internals.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := toBody(err)
		if body.Error.Status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(body.Error.Status)
		} else {
			writeErr = c.JSON(body.Error.Status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func toBody(err error) errorBody {
	if e, ok := As(err); ok {
		return errorBody{Error: e}
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return errorBody{Error: &Error{
			Code:    codeForStatus(he.Code),
			Message: fmt.Sprintf("%v", he.Message),
			Status:  he.Code,
		}}
	}
	return errorBody{Error: &Error{
		Code:    CodeInternal,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return "Conflict"
	case http.StatusMethodNotAllowed:
		return "MethodNotAllowed"
	case http.StatusTooManyRequests:
		return "RateLimited"
	case http.StatusGatewayTimeout:
		return "Timeout"
	default:
		return CodeInternal
	}
}
