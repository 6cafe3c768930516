package identity

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

// RegisterRoutes mounts login on the public group and everything else on the
// authenticated api group. loginMW wraps only the login route.
func (h *Handler) RegisterRoutes(public, api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	public.POST("/login", h.Login, loginMW...)

	api.POST("/logout", h.Logout)
	api.GET("/me", h.Me)

	api.GET("/admin/users", h.ListUsers)
	api.POST("/admin/users", h.CreateUser)
	api.GET("/admin/users/:id", h.GetUser)
	api.PUT("/admin/users/:id", h.UpdateUser)
	api.DELETE("/admin/users/:id", h.DeleteUser)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c echo.Context) error {
	if _, err := h.svc.Logout(c.Request().Context(), auth.ActorFromEcho(c)); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context(), auth.ActorFromEcho(c))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": u, "role": u.Actor().PrimaryRole()})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), auth.ActorFromEcho(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":      users,
		"pagination": pagination.NewMeta(pg, total),
	})
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	u, err := h.svc.GetUser(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": u})
}

func (h *Handler) CreateUser(c echo.Context) error {
	var in AccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), auth.ActorFromEcho(c), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "user created", "user": u})
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in AccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), auth.ActorFromEcho(c), id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "user updated", "user": u})
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteUser(c.Request().Context(), auth.ActorFromEcho(c), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "user deleted"})
}
