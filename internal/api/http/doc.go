// Package http serves the status API: stored error reports, circuit
// breaker state and fallback and recovery statistics.
//
// Routes:
//
//	GET    /health                     breaker-aware health check
//	GET    /api/reports                ?severity= ?last=
//	GET    /api/reports/summary
//	GET    /api/reports/export         ?format=json|yaml|text
//	DELETE /api/reports                ?older_than=
//	GET    /api/breakers
//	POST   /api/breakers/:name/reset
//	GET    /api/fallback
//	GET    /api/recovery
//	GET    /api/metrics                counter totals as JSON
package http
