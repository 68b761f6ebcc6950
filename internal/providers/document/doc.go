// Package document holds the format plumbing shared by the converter,
// the validator and the fallback strategies: content sniffing, transparent
// decompression, charset handling, HTML text extraction, a structural PDF
// scanner and structured data decoding.
package document
