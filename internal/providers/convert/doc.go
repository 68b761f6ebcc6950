// Package convert provides the primary document converter used by the
// batch pipeline.
//
// The converter is strict: a PDF with a font descriptor
// missing its FontBBox, a truncated cross-reference table or an
// undecodable stream fails with a classified error instead of producing
// partial output. Lenient extraction is the job of the fallback
// strategies in package extract.
package convert
