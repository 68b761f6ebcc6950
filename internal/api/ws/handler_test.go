package ws

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
)

func dial(t *testing.T, reporter *reporting.Reporter, metrics *monitoring.Metrics) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", NewHandler(reporter, metrics, nil).HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamReports(t *testing.T) {
	reporter := reporting.NewReporter()
	conn := dial(t, reporter, nil)

	welcome := read(t, conn)
	assert.Equal(t, "system", welcome["type"])

	reporter.ReportError(taxonomy.NewPDFParsingError("bad xref", 0).WithLocation("/in/a.pdf"), reporting.Context{Operation: "convert"})

	msg := read(t, conn)
	assert.Equal(t, "report", msg["type"])
	report, ok := msg["report"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/in/a.pdf", report["file_path"])
	assert.Equal(t, "WARNING", report["severity"])
}

func TestClientRequests(t *testing.T) {
	reporter := reporting.NewReporter()
	reporter.ReportError(errors.New("disk on fire"), reporting.Context{})
	conn := dial(t, reporter, nil)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(Message{Type: "summary"}))
	msg := read(t, conn)
	assert.Equal(t, "summary", msg["type"])
	summary, ok := msg["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), summary["total"])

	require.NoError(t, conn.WriteJSON(Message{Type: "chat"}))
	msg = read(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "unknown message type", msg["message"])
}

func TestConnectionGauge(t *testing.T) {
	metrics := monitoring.NewMetrics()
	conn := dial(t, reporting.NewReporter(), metrics)
	read(t, conn)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSConnections))

	conn.Close()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
