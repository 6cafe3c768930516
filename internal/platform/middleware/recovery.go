package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// Recovery turns a handler panic into an internal error. The panic value and
// stack are logged with the request id; the client only sees the generic
// internal error message.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				rid, _ := c.Get("request_id").(string)
				evt := logger.Error().Err(cause).
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Bytes("stack", debug.Stack())
				if id, ok := c.Get("actor_id").(int64); ok {
					evt = evt.Int64("actor_id", id)
				}
				evt.Msg("panic recovered")

				err = apperr.Internal("panic", cause)
			}()
			return next(c)
		}
	}
}
