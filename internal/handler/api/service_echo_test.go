package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	e := echo.New()
	NewServiceEchoHandler(nil).RegisterRoutes(e)

	rec, env := do(t, e, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Stooorage")
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := NewServiceEchoHandler(nil)
	h.AddCheck("postgres", func(context.Context) error { return nil })
	h.RegisterRoutes(e)

	rec, env := do(t, e, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, env.Data, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok"}, body.Checks)

	h.AddCheck("clickhouse", func(context.Context) error { return errors.New("connection refused") })
	rec, env = do(t, e, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	decode(t, env.Data, &body)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "connection refused", body.Checks["clickhouse"])
	assert.Equal(t, "ok", body.Checks["postgres"])
}
