package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t)
	return NewHandler(f.svc), f, echo.New()
}

func withActor(c echo.Context, a *auth.Actor) {
	c.SetRequest(c.Request().WithContext(auth.WithActor(c.Request().Context(), a)))
}

func TestHandler_Login(t *testing.T) {
	h, _, e := newTestHandler(t)
	body := `{"email":"admin@clinica.test","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.AccessToken == "" || res.User.Role != "administrator" || res.User.Email != "admin@clinica.test" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Login_Unauthorized(t *testing.T) {
	h, _, e := newTestHandler(t)
	body := `{"email":"admin@clinica.test","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, f, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, f.patient)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"role":"patient"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "argon2") {
		t.Error("password hash leaked")
	}
}

func TestHandler_Logout(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.svc.Login(context.Background(), "pablo@clinica.test", "secret2")
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, f.patient)

	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetUser_InvalidID(t *testing.T) {
	h, f, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	withActor(c, f.admin)

	before := len(f.logs.Entries())
	err := h.GetUser(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(f.logs.Entries()) != before {
		t.Error("malformed ids are rejected before auditing")
	}
}

func TestHandler_ListUsers_Forbidden(t *testing.T) {
	h, f, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	withActor(c, f.patient)

	err := h.ListUsers(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestHandler_CreateUser(t *testing.T) {
	h, f, e := newTestHandler(t)
	body := `{"name":"Nora","surnames":"Nueva","email":"nora@clinica.test","password":"secret9","roles":["user"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, f.admin)

	if err := h.CreateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}
