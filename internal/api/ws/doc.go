// Package ws streams error reports to WebSocket clients.
//
// Every report filed with the reporter while a client is connected is
// pushed as it happens. Slow clients lose reports rather than stall the
// batch.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - summary: Request the current report summary
//
// Message Types (Server → Client):
//   - system: Connection established
//   - report: A new error report
//   - summary: Report counts by severity and kind
//   - pong: Reply to ping
//   - error: Unknown request
//
// Example Usage:
//
//	handler := ws.NewHandler(reporter, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
