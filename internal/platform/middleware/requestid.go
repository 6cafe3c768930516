package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/audit"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates or generates a request id, echoes it in the response
// and attaches it, with the client address, to the audit metadata of the
// request context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 64 {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			ctx := audit.WithMeta(req.Context(), audit.Meta{RequestID: rid, RemoteIP: c.RealIP()})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
