package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	reporter *reporting.Reporter
	breakers *resilience.Registry
	fallback *fallback.Manager
	recovery *recovery.Orchestrator
	metrics  *monitoring.Metrics
	started  time.Time
}

// NewHandlers creates a new handler set. breakers and metrics may be nil.
func NewHandlers(
	reporter *reporting.Reporter,
	breakers *resilience.Registry,
	fallbackMgr *fallback.Manager,
	orchestrator *recovery.Orchestrator,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		reporter: reporter,
		breakers: breakers,
		fallback: fallbackMgr,
		recovery: orchestrator,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.GET("/reports", h.ListReports)
	api.GET("/reports/summary", h.ReportSummary)
	api.GET("/reports/export", h.ExportReports)
	api.DELETE("/reports", h.ClearReports)
	api.GET("/breakers", h.ListBreakers)
	api.POST("/breakers/:name/reset", h.ResetBreaker)
	api.GET("/fallback", h.FallbackMetrics)
	api.GET("/recovery", h.RecoveryMetrics)
	api.GET("/metrics", h.MetricsSnapshot)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "docshield",
		"version": Version,
	})
}

// Health reports degraded when any breaker is not closed.
func (h *Handlers) Health(c *gin.Context) {
	all := h.allBreakers()
	open := make([]string, 0)
	for _, name := range sortedNames(all) {
		if all[name].State() != resilience.StateClosed {
			open = append(open, name)
		}
	}
	status := "healthy"
	if len(open) > 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"uptime":        time.Since(h.started).Round(time.Second).String(),
		"open_breakers": open,
		"reports":       h.reporter.Len(),
	})
}

// ListReports lists stored reports, oldest first. Supports ?severity= and
// ?last=.
func (h *Handlers) ListReports(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	reports := h.reporter.Reports(filter)
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// ReportSummary aggregates stored reports.
func (h *Handlers) ReportSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.reporter.Summary())
}

// ExportReports renders stored reports as ?format=json|yaml|text.
func (h *Handlers) ExportReports(c *gin.Context) {
	format, err := reporting.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	data, err := reporting.Encode(h.reporter.Reports(filter), format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType(format), data)
}

// ClearReports drops reports older than ?older_than=, or all of them.
func (h *Handlers) ClearReports(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid older_than: " + err.Error()})
			return
		}
		olderThan = d
	}
	c.JSON(http.StatusOK, gin.H{"removed": h.reporter.Clear(olderThan)})
}

// ListBreakers lists every circuit breaker.
func (h *Handlers) ListBreakers(c *gin.Context) {
	all := h.allBreakers()
	snaps := make([]resilience.Snapshot, 0, len(all))
	for _, name := range sortedNames(all) {
		snaps = append(snaps, all[name].Metrics())
	}
	c.JSON(http.StatusOK, gin.H{"breakers": snaps})
}

// ResetBreaker closes a breaker and clears its counters.
func (h *Handlers) ResetBreaker(c *gin.Context) {
	name := c.Param("name")
	b, ok := h.allBreakers()[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown breaker " + strconv.Quote(name)})
		return
	}
	b.Reset()
	c.JSON(http.StatusOK, b.Metrics())
}

// FallbackMetrics returns fallback chain statistics.
func (h *Handlers) FallbackMetrics(c *gin.Context) {
	if h.fallback == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fallback manager not configured"})
		return
	}
	c.JSON(http.StatusOK, h.fallback.Metrics())
}

// RecoveryMetrics returns recovery statistics.
func (h *Handlers) RecoveryMetrics(c *gin.Context) {
	if h.recovery == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recovery orchestrator not configured"})
		return
	}
	c.JSON(http.StatusOK, h.recovery.Metrics())
}

// MetricsSnapshot returns counter totals as JSON.
func (h *Handlers) MetricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
