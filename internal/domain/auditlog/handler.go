package auditlog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/logs", h.List)
	api.GET("/logs/usuario/:id", h.ListByUser)
	api.GET("/logs/accion/:accion", h.ListByAction)
}

func (h *Handler) List(c echo.Context) error {
	return h.list(c, audit.Filter{})
}

func (h *Handler) ListByUser(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return h.list(c, audit.Filter{UserID: &id})
}

func (h *Handler) ListByAction(c echo.Context) error {
	action := c.Param("accion")
	if !audit.IsKnownAction(action) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	return h.list(c, audit.Filter{Action: action})
}

func (h *Handler) list(c echo.Context, f audit.Filter) error {
	pg := pagination.FromContext(c)
	logs, total, err := h.svc.List(c.Request().Context(), auth.ActorFromEcho(c), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if logs == nil {
		logs = []*audit.Log{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":       logs,
		"pagination": pagination.NewMeta(pg, total),
	})
}
