package appointment

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/apperr"
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
	api.GET("/citas", h.List)
	api.POST("/citas", h.Create)
	api.GET("/citas/:id", h.Get)
	api.PUT("/citas/:id", h.Update)
	api.DELETE("/citas/:id", h.Delete)
	api.POST("/citas/:id/cancelar", h.Cancel)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.ActorFromEcho(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"citas":      items,
		"pagination": pagination.NewMeta(pg, total),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.Get(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"cita": a})
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), auth.ActorFromEcho(c), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "appointment created", "cita": a})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), auth.ActorFromEcho(c), id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "appointment updated", "cita": a})
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	a, noop, err := h.svc.Cancel(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if noop {
		return c.JSON(http.StatusOK, map[string]interface{}{"message": "appointment already cancelled", "cita": a})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "appointment cancelled", "cita": a})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.Delete(c.Request().Context(), auth.ActorFromEcho(c), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "appointment deleted"})
}
