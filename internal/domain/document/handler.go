package document

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

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
	api.GET("/documentos", h.List)
	api.GET("/documentos/mine", h.ListMine)
	api.POST("/documentos", h.Upload)
	api.GET("/documentos/:id", h.Get)
	api.GET("/documentos/:id/download", h.Download)
	api.DELETE("/documentos/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.ActorFromEcho(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return listResponse(c, pg, items, total)
}

func (h *Handler) ListMine(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMine(c.Request().Context(), auth.ActorFromEcho(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return listResponse(c, pg, items, total)
}

func listResponse(c echo.Context, pg pagination.Params, items []*Document, total int) error {
	if items == nil {
		items = []*Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents":  items,
		"pagination": pagination.NewMeta(pg, total),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	d, err := h.svc.Get(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"document": d})
}

// maxUploadRequest leaves room for the multipart framing and the form fields
// around a file of MaxUploadSize.
const maxUploadRequest = MaxUploadSize + 1<<20

func errFileTooLarge() error {
	return apperr.Validation("file must be at most 5 MB")
}

// Upload accepts multipart/form-data with fields name, description,
// history_id and the binary in file.
func (h *Handler) Upload(c echo.Context) error {
	req := c.Request()
	if req.ContentLength > maxUploadRequest {
		return apperr.ToHTTP(errFileTooLarge())
	}
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxUploadRequest)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.ToHTTP(errFileTooLarge())
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	in := UploadInput{
		Name:     c.FormValue("name"),
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	}
	if desc := c.FormValue("description"); desc != "" {
		in.Description = &desc
	}
	if raw := c.FormValue("history_id"); raw != "" {
		hid, err := apperr.ParseID(raw)
		if err != nil {
			return apperr.ToHTTP(apperr.Validation("history_id must be a positive integer"))
		}
		in.HistoryID = &hid
	}

	d, err := h.svc.Upload(c.Request().Context(), auth.ActorFromEcho(c), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "document uploaded", "document": d})
}

func (h *Handler) Download(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	d, body, err := h.svc.Download(c.Request().Context(), auth.ActorFromEcho(c), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", downloadName(d)))
	return c.Stream(http.StatusOK, d.MimeType, body)
}

// downloadName is the display name with the stored extension appended when
// missing.
func downloadName(d *Document) string {
	ext := path.Ext(d.Path)
	if strings.HasSuffix(strings.ToLower(d.Name), ext) {
		return d.Name
	}
	return d.Name + ext
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := apperr.ParseID(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.Delete(c.Request().Context(), auth.ActorFromEcho(c), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "document deleted"})
}
