package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAndTransportCounters(t *testing.T) {
	m := New()

	m.SyncStarted("expedia")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncsInFlight.WithLabelValues("expedia")))
	m.ObserveSync("expedia", syncresult.Rates, true, 2*time.Second)
	m.ObserveSync("expedia", syncresult.Rates, false, time.Second)
	m.SyncFinished("expedia")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.syncsInFlight.WithLabelValues("expedia")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncsTotal.WithLabelValues("expedia", "rates", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncsTotal.WithLabelValues("expedia", "rates", "false")))

	m.ObserveAttempt("airbnb", 500, errors.New("boom"), 10*time.Millisecond)
	m.ObserveAttempt("airbnb", 0, errors.New("dial"), 10*time.Millisecond)
	m.ObserveRetry("airbnb")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("airbnb", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("airbnb", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("airbnb")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/channels/:id/history", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels/abc/history", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/channels/:id/history", "418")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "chansync_http_requests_total"))
}
