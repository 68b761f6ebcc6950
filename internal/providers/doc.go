// Package providers groups the document-facing components that the
// resilience layer drives.
//
// Available Providers:
//   - document: format detection, decompression, charset and PDF/HTML parsing
//   - convert: the strict primary converter
//   - extract: lenient fallback strategies, from text extraction to a
//     diagnostic stub
//   - validate: structural checks used before retrying a conversion
//
// Every provider works on a types.FileDescriptor and writes its output with
// document.WriteFile.
package providers
