package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	xhttp "Stooorage/pkg/http"
	applogger "Stooorage/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// ServiceEchoHandler serves / and /health.
type ServiceEchoHandler struct {
	l       *applogger.Logger
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewServiceEchoHandler(l *applogger.Logger) *ServiceEchoHandler {
	return &ServiceEchoHandler{l: l, checks: make(map[string]HealthCheck), timeout: 3 * time.Second}
}

// AddCheck registers a named dependency check.
func (h *ServiceEchoHandler) AddCheck(name string, check HealthCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

func (h *ServiceEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
}

func (h *ServiceEchoHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"message": "Stooorage inventory and sales forecast API",
	})
}

// Health runs every check; any failure answers 503.
func (h *ServiceEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "unavailable"
			results[name] = err.Error()
			if h.l != nil {
				h.l.Warn("health check failed", applogger.String("dependency", name), applogger.Error(err))
			}
			continue
		}
		results[name] = "ok"
	}

	body := map[string]interface{}{"status": status, "checks": results}
	if status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, body)
	}
	return xhttp.SuccessResponse(c, body)
}
