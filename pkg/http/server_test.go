package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func newTestServer() *Server {
	return NewServer(Handlers{routes(func(e *echo.Echo) {
		e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundError("nothing here"))
		})
		e.GET("/panic", func(c echo.Context) error { panic("boom") })
		e.GET("/plain", func(c echo.Context) error { return AppErrorResponse(c, errors.New("raw")) })
	})})
}

func serve(s *Server, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerStatusCodes(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusOK, serve(s, "/ok", nil).Code)

	rec := serve(s, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve(s, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "raw")
}

func TestServerRecoversPanics(t *testing.T) {
	s := newTestServer()
	rec := serve(s, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerRequestID(t *testing.T) {
	s := newTestServer()

	rec := serve(s, "/ok", nil)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, "/ok", map[string]string{echo.HeaderXRequestID: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServerMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	serve(s, "/ok", nil)

	rec := serve(s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stooorage_http_requests_total{method="GET",route="/ok",status="200"}`)
}

func TestServerCORSPreflight(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestServerCORSRestrictedOrigins(t *testing.T) {
	s := NewServer(Handlers{routes(func(e *echo.Echo) {
		e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	})}, WithMetrics(false, "", 0), WithCORS(true, "*.stooorage.local"))

	rec := serve(s, "/ok", map[string]string{"Origin": "https://ui.stooorage.local"})
	assert.Equal(t, "https://ui.stooorage.local", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(s, "/ok", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerExtraMiddleware(t *testing.T) {
	tag := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Served-By", "stooorage")
			return next(c)
		}
	}
	s := NewServer(Handlers{routes(func(e *echo.Echo) {
		e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	})}, WithMetrics(false, "", 0), WithMiddleware(tag))

	assert.Equal(t, "stooorage", serve(s, "/ok", nil).Header().Get("X-Served-By"))
}

func TestServerStartBindsAndStops(t *testing.T) {
	s := NewServer(Handlers{routes(func(e *echo.Echo) {
		e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	})}, WithHost("127.0.0.1"), WithPort(0), WithMetrics(false, "", 0))

	require.NoError(t, s.Start())
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/ok")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
}
