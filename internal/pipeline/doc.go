// Package pipeline runs batch conversions.
//
// A Runner scans an input tree (fastwalk with doublestar include and
// exclude patterns) and converts files on a bounded errgroup worker pool.
// Every primary conversion goes through the circuit breaker for its
// format (convert.pdf, convert.html, ...). Failures are handed to the
// recovery orchestrator and reported; the batch continues unless recovery
// aborts it, in which case files not yet started are marked aborted.
package pipeline
