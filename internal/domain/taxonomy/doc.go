/*
Package taxonomy defines the closed set of conversion failure kinds shared by
the circuit breaker, fallback chain, recovery orchestrator and error reporter.

# Kinds

Every concrete kind belongs to one of two branches:

	conversion
	├── recoverable
	│   ├── pdf_parsing
	│   │   └── font_descriptor
	│   ├── generic_conversion
	│   ├── validation_failed
	│   ├── permission
	│   └── conversion_memory
	└── unrecoverable
	    ├── file_not_found
	    ├── unsupported_file_type
	    ├── conversion_timeout
	    └── generic_unrecoverable

The supertype relation is data (Info.Parents), so lookups that walk from a
kind to its ancestors use Lineage rather than type assertions.

# Classification

Classify turns any error into a *ConversionError. Typed errors pass through;
io/fs and context sentinels map directly; everything else is matched against
message heuristics (a "FontBBox" message becomes font_descriptor, "memory"
becomes conversion_memory, and so on).
*/
package taxonomy
