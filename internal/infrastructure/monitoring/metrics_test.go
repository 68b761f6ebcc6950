package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
		m.SetBreakerState("pdf", 2)
		m.RecordBreakerTransition("pdf", "closed", "open")
		m.RecordFallbackAttempt("basic_text", true, time.Second)
		m.RecordRecoveryAction("retry", "pdf_parsing", false)
		m.RecordReport("ERROR", "pdf_parsing")
		m.RecordFile(FileSucceeded, "pdf", time.Second)
		m.IncWSConnections()
		m.DecWSConnections()
		NewTimer(m, "pdf").Stop(FileFailed)
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordReport("ERROR", "permission")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Reports.WithLabelValues("ERROR", "permission")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reports.WithLabelValues("ERROR", "permission")))
}

func TestRecordFallbackAttempt(t *testing.T) {
	m := NewMetrics()

	m.RecordFallbackAttempt("basic_text", true, 10*time.Millisecond)
	m.RecordFallbackAttempt("basic_text", false, 10*time.Millisecond)
	m.RecordFallbackAttempt("diagnostic", false, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackAttempts.WithLabelValues("basic_text", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackAttempts.WithLabelValues("basic_text", "failure")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.FallbackAttempts)
	assert.Equal(t, int64(1), snap.FallbackSuccesses)
}

func TestRecordFile(t *testing.T) {
	m := NewMetrics()

	m.RecordFile(FileSucceeded, "pdf", time.Second)
	m.RecordFile(FileSkipped, "", time.Second)
	m.RecordFile(FileFailed, "docx", time.Second)
	m.RecordFile(FileFailed, "docx", time.Second)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.FilesSucceeded)
	assert.Equal(t, int64(1), snap.FilesSkipped)
	assert.Equal(t, int64(2), snap.FilesFailed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(FileFailed)))
}

func TestBreakerObserver(t *testing.T) {
	m := NewMetrics()
	b := resilience.New("pdf", resilience.Config{FailureThreshold: 1},
		resilience.WithStateChange(BreakerObserver(m)))

	b.ForceOpen()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("pdf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("pdf", "closed", "open")))

	b.ForceClose()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("pdf")))
	assert.Equal(t, int64(2), m.Snapshot().BreakerTransitions)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordRecoveryAction("skip_file", "file_not_found", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "docshield_recovery_actions_total"))
	assert.True(t, strings.Contains(body, "docshield_uptime_seconds"))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/api/reports/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/rpt_1", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/reports/:id", "204")))
	assert.Equal(t, int64(1), m.Snapshot().HTTPRequests)
}
