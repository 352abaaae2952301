package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Probe reports the health of one dependency.
type Probe func(ctx context.Context) error

// HealthHandler serves liveness and readiness. Readiness runs every probe.
type HealthHandler struct {
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{probes: make(map[string]Probe), timeout: timeout}
}

// Add registers a readiness probe under name. A nil probe is ignored.
func (h *HealthHandler) Add(name string, p Probe) *HealthHandler {
	if p != nil {
		h.probes[name] = p
	}
	return h
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.probes))
	for name, p := range h.probes {
		if err := p(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	return c.JSON(status, map[string]interface{}{"status": http.StatusText(status), "checks": checks})
}
