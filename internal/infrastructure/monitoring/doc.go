/*
Package monitoring provides Prometheus metrics for the conversion pipeline.

# Overview

Each Metrics value owns a private registry. Breakers, fallback chains,
the recovery orchestrator and the reporter record into it, and the status
server exposes it on /metrics. All methods are safe on a nil *Metrics so
components can be built without instrumentation.

# Features

- Circuit breaker state and transitions
- Fallback attempts and latency per strategy
- Recovery actions by error kind and outcome
- Error reports by severity and kind
- Per-file outcomes and conversion latency
- HTTP and WebSocket metrics for the status server

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "pdf")
	// ... convert one file ...
	timer.Stop(monitoring.FileSucceeded)
*/
package monitoring
