// Package validate provides a structural Validator for the formats the
// converter understands.
//
// Checks:
//   - content type matches the extension
//   - PDF: header, %%EOF, startxref, cross-reference table, page objects,
//     decodable streams, FontBBox on every font descriptor
//   - HTML: parseable with readable text
//   - JSON, YAML, TOML: parse cleanly
//   - text: no NUL bytes
package validate
