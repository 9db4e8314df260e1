package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type routeHandler struct {
	path string
}

func (h routeHandler) Register(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error { return c.String(http.StatusOK, h.path) })
	e.GET(h.path+"/panic", func(c echo.Context) error { panic("boom") })
}

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", routeHandler{path: "/a"}, nil, routeHandler{path: "/b"})
	if srv.Addr() != ":3000" {
		t.Fatalf("unexpected default addr: %s", srv.Addr())
	}
	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != path {
			t.Fatalf("path=%s code=%d body=%q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, ":0", routeHandler{path: "/a"})
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestRedactToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri  string
		want string
	}{
		{uri: "/webhook?token=s3cret", want: "/webhook?token=REDACTED"},
		{uri: "/webhook", want: "/webhook"},
		{uri: "/health?x=1", want: "/health?x=1"},
	}
	for _, tc := range cases {
		if got := redactToken(tc.uri); got != tc.want {
			t.Fatalf("uri=%q want=%q got=%q", tc.uri, tc.want, got)
		}
	}
}
