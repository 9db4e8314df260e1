package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/deskrelay/internal/healthcheck"
)

type staticChecker []healthcheck.CheckResult

func (s staticChecker) ListChecks(context.Context) []healthcheck.CheckResult { return s }

func TestHealthReportsChecks(t *testing.T) {
	t.Parallel()

	e := echo.New()
	agg := healthcheck.NewAggregator(staticChecker{
		{ID: "channel.connection.discord", Status: healthcheck.StatusError, Summary: "down"},
	})
	NewHealthHandler(newTestLogger(), agg).Register(e)
	NewPingHandler(newTestLogger()).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, healthcheck.StatusError, resp.ChecksStatus)
	assert.False(t, resp.Timestamp.IsZero())
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, "channel.connection.discord", resp.Checks[0].ID)

	head := httptest.NewRecorder()
	e.ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, head.Code)

	ping := httptest.NewRecorder()
	e.ServeHTTP(ping, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, ping.Code)
	assert.Contains(t, ping.Body.String(), `"status":"ok"`)
	assert.Contains(t, ping.Body.String(), `"service":"deskrelay"`)
}

func TestMetricsHandlerWrapsHTTPHandler(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("deskrelay_sessions 1\n"))
	})).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deskrelay_sessions"))
}
