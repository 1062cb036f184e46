package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/leave/balance", "GET", 200, 2*time.Millisecond)
	m.RecordRequest("/leave/balance", "GET", 200, 4*time.Millisecond)
	m.RecordError("/leave/requests", "POST", "VALIDATION_FAILED")

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Requests["/leave/balance|GET|200"])
	assert.InDelta(t, 3.0, s.AvgLatencyMS["/leave/balance|GET|200"], 0.001)
	assert.Equal(t, int64(1), s.Errors["/leave/requests|POST|VALIDATION_FAILED"])

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", "GET", 200, 0)
	assert.Empty(t, nilMetrics.Snapshot().Requests)
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(RequestIDHeader))

	assert.Equal(t, int64(2), m.Snapshot().Requests["/ping|GET|200"])
}
