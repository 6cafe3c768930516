package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		if audit.MetaFromContext(c.Request().Context()).RequestID != rid {
			t.Error("expected request id in audit metadata")
		}
		return c.String(http.StatusOK, "ok")
	}

	h := RequestID()(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	req.RemoteAddr = "192.0.2.10:1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		meta := audit.MetaFromContext(c.Request().Context())
		if meta.RequestID != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", meta.RequestID)
		}
		if meta.RemoteIP != "192.0.2.10" {
			t.Errorf("expected remote ip 192.0.2.10, got %s", meta.RemoteIP)
		}
		return c.String(http.StatusOK, "ok")
	}

	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)

	if len(rec.Header().Get(RequestIDHeader)) > 64 {
		t.Error("expected oversized request id to be replaced")
	}
}

func TestLogger_LogsStatusOfError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/citas/9", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("actor_id", int64(5))

	h := Logger(logger)(func(c echo.Context) error {
		return apperr.NotFound("appointment not found")
	})
	if err := h(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"actor_id":5`) {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-42")

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	err := Recovery(logger)(handler)(c)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	he := apperr.ToHTTP(err)
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if strings.Contains(fmt.Sprint(he.Message), "test panic") {
		t.Error("panic value must not reach the client")
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"rid-42"`) || !strings.Contains(out, "test panic") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(os.Stderr).With().Logger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"validation", apperr.Validation("tipo must be in-person or remote"), 422, "tipo must be in-person or remote"},
		{"forbidden", apperr.Forbidden("not allowed"), 403, "not allowed"},
		{"internal", apperr.Internal("save", errors.New("pg down")), 500, "internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated"), 401, "unauthenticated"},
		{"plain", errors.New("boom"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]string
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body["message"] != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, body["message"])
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	SecurityHeaders()(func(c echo.Context) error { return nil })(c)
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected no-store")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff")
	}
}
