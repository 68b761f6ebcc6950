// Package extract provides the built-in fallback strategies:
//
//	basic_text_extraction  high       lenient per-format text extraction
//	printable_text_scan    low        printable character runs of any non-structured file
//	diagnostic_stub        emergency  placeholder output describing the failure
package extract
