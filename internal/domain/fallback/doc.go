// Package fallback runs a priority-ordered chain of alternative conversion
// strategies when a file's primary conversion fails.
//
// Strategies are tried one at a time through a single internal circuit
// breaker named "fallback_manager", so a strategy that is broken for every
// file stops being attempted until the breaker recovers. Strategy errors
// and panics are converted into a failed Result and never escape.
package fallback
