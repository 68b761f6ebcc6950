package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/config"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

type fixture struct {
	server   *Server
	reporter *reporting.Reporter
	breakers *resilience.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit.Enabled = false

	metrics := monitoring.NewMetrics()
	reporter := reporting.NewReporter(reporting.WithMetrics(metrics))
	breakers := resilience.NewRegistry(resilience.DefaultConfig())
	mgr := fallback.NewManager(fallback.WithMetrics(metrics))

	srv, err := NewServer(cfg, Deps{
		Reporter: reporter,
		Breakers: breakers,
		Fallback: mgr,
		Recovery: recovery.New(mgr, nil),
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return fixture{server: srv, reporter: reporter, breakers: breakers}
}

func (f fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewServerRequiresReporter(t *testing.T) {
	_, err := NewServer(config.Default(), Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.do(t, http.MethodGet, "/health"))
	assert.Equal(t, "healthy", body["status"])

	f.breakers.Get("convert.pdf").ForceOpen()
	body = decode(t, f.do(t, http.MethodGet, "/health"))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, []interface{}{"convert.pdf"}, body["open_breakers"])
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	f.reporter.ReportError(taxonomy.NewPDFParsingError("bad xref", 0).WithLocation("/in/a.pdf"), reporting.Context{})
	f.reporter.ReportError(errors.New("boom"), reporting.Context{FilePath: "/in/b.txt"})
	f.reporter.ReportError(errors.New("bang"), reporting.Context{FilePath: "/in/c.txt"})

	body := decode(t, f.do(t, http.MethodGet, "/api/reports"))
	assert.Equal(t, float64(3), body["count"])

	body = decode(t, f.do(t, http.MethodGet, "/api/reports?severity=warning"))
	assert.Equal(t, float64(1), body["count"])

	body = decode(t, f.do(t, http.MethodGet, "/api/reports?severity=error&last=1"))
	reports := body["reports"].([]interface{})
	require.Len(t, reports, 1)
	assert.Equal(t, "/in/c.txt", reports[0].(map[string]interface{})["file_path"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/reports?severity=loud").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/reports?last=-2").Code)

	summary := decode(t, f.do(t, http.MethodGet, "/api/reports/summary"))
	assert.Equal(t, float64(3), summary["total"])
	assert.Equal(t, float64(2), summary["by_severity"].(map[string]interface{})["ERROR"])
}

func TestExportReports(t *testing.T) {
	f := newFixture(t)
	f.reporter.ReportError(errors.New("boom"), reporting.Context{FilePath: "/in/b.txt"})

	w := f.do(t, http.MethodGet, "/api/reports/export?format=text")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "File: /in/b.txt")

	w = f.do(t, http.MethodGet, "/api/reports/export?format=yaml")
	reports, err := reporting.Decode(w.Body.Bytes(), reporting.FormatYAML)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/reports/export?format=xml").Code)
}

func TestClearReports(t *testing.T) {
	f := newFixture(t)
	f.reporter.ReportError(errors.New("boom"), reporting.Context{})

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/api/reports?older_than=soon").Code)

	body := decode(t, f.do(t, http.MethodDelete, "/api/reports"))
	assert.Equal(t, float64(1), body["removed"])
	assert.Zero(t, f.reporter.Len())
}

func TestBreakers(t *testing.T) {
	f := newFixture(t)
	f.breakers.Get("convert.pdf").ForceOpen()

	body := decode(t, f.do(t, http.MethodGet, "/api/breakers"))
	var names []string
	for _, b := range body["breakers"].([]interface{}) {
		names = append(names, b.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"convert.pdf", recovery.BreakerName, fallback.BreakerName}, names)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/breakers/nope/reset").Code)

	body = decode(t, f.do(t, http.MethodPost, "/api/breakers/convert.pdf/reset"))
	assert.Equal(t, "closed", body["state"])
	assert.Equal(t, resilience.StateClosed, f.breakers.Get("convert.pdf").State())
}

func TestComponentMetrics(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.do(t, http.MethodGet, "/api/fallback"))
	assert.Contains(t, body, "strategies")

	body = decode(t, f.do(t, http.MethodGet, "/api/recovery"))
	assert.Contains(t, body, "rules")

	f.do(t, http.MethodGet, "/health")
	body = decode(t, f.do(t, http.MethodGet, "/api/metrics"))
	assert.GreaterOrEqual(t, body["http_requests"], float64(1))

	w := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docshield_")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
