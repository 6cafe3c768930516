package history

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
	api.GET("/historiales", h.List)
	api.POST("/historiales", h.Create)
	api.GET("/historiales/:id", h.Get)
	api.PUT("/historiales/:id", h.Update)
	api.DELETE("/historiales/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.ActorFromEcho(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*History{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"histories":  items,
		"pagination": pagination.NewMeta(pg, total),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	hist, err := h.svc.Get(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": hist})
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hist, err := h.svc.Create(c.Request().Context(), auth.ActorFromEcho(c), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "history created", "history": hist})
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
	hist, err := h.svc.Update(c.Request().Context(), auth.ActorFromEcho(c), id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "history updated", "history": hist})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.Delete(c.Request().Context(), auth.ActorFromEcho(c), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "history deleted"})
}
