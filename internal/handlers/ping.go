package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/deskrelay/internal/version"
)

// PingResponse is the liveness probe body.
type PingResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type PingHandler struct {
	logger *slog.Logger
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{logger: log.With(slog.String("handler", "ping"))}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/ping", h.Head)
	e.HEAD("/health", h.Head)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{
		Status:  "ok",
		Service: "deskrelay",
		Version: version.Version,
	})
}

// Head answers liveness probes that only look at the status code.
func (h *PingHandler) Head(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
