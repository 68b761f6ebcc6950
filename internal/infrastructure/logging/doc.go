// Package logging builds the zap logger shared by every component.
//
// Production mode writes JSON, development mode writes colored console
// output. Both go to stderr so the CLI can print its batch summary on
// stdout.
//
//	logger := logging.NewDefault()
//	breaker := resilience.New("convert.pdf", cfg, resilience.WithLogger(logger.Component("breaker")))
package logging
