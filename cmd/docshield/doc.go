// Command docshield converts a directory of documents to text and JSON,
// recovering from per-file failures instead of stopping the batch.
//
// Each file is converted behind a circuit breaker for its format. A failure
// is classified, run through the recovery rules (retry, fallback extraction,
// validation, skip or abort) and filed as an error report.
//
// Configuration:
//   - Environment variables prefixed DOCSHIELD_
//   - CLI flags (override env vars)
//   - An optional YAML or TOML recovery rules file
//
// Usage:
//
//	# Convert a folder, writing reports next to the output
//	docshield -input ./inbox -output ./converted -report ./converted/errors.yaml
//
//	# Only PDFs and HTML, with the status API on :8080
//	docshield -input ./inbox -output ./out -include '**/*.pdf,**/*.html' -serve
//
// The batch summary is printed to stdout as JSON. Logs go to stderr.
//
// Exit status: 0 when every file produced output, 1 when some were skipped
// or failed, 2 on setup errors, 3 when the batch was aborted or interrupted.
//
// Signals:
//   - SIGINT, SIGTERM: stop the batch; unstarted files are marked aborted
package main
