package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// ErrorHandler renders every error as {"message": ...}. Internal causes are
// logged, never returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		he := apperr.ToHTTP(err)
		if he.Code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			logger.Error().Err(cause).Str("request_id", rid).Msg("request failed")
		}

		msg := he.Message
		if m, ok := msg.(string); ok {
			msg = map[string]string{"message": m}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, msg)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
