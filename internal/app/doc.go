// Package app wires configuration, logging, metrics and every conversion
// component into one stack used by the command line and the status server.
package app
