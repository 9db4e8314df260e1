package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/deskrelay/internal/healthcheck"
)

// HealthResponse is the body of GET /health. Status is always "healthy" while
// the process serves requests; Checks are informational.
type HealthResponse struct {
	Status       string                    `json:"status"`
	Timestamp    time.Time                 `json:"timestamp"`
	ChecksStatus string                    `json:"checks_status"`
	Checks       []healthcheck.CheckResult `json:"checks"`
}

type HealthHandler struct {
	checks *healthcheck.Aggregator
	logger *slog.Logger
}

func NewHealthHandler(log *slog.Logger, checks *healthcheck.Aggregator) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: log.With(slog.String("handler", "health")),
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	report := h.checks.Run(c.Request().Context())
	if report.Status != healthcheck.StatusOK {
		h.logger.Debug("health checks degraded", slog.String("status", report.Status))
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Timestamp:    report.Timestamp,
		ChecksStatus: report.Status,
		Checks:       report.Checks,
	})
}
