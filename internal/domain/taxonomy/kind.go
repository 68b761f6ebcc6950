package taxonomy

// Kind identifies a class of conversion failure.
type Kind string

const (
	// Abstract kinds. They are never attached to an error directly but act as
	// supertypes for rule and weight lookups.
	KindConversion    Kind = "conversion"
	KindRecoverable   Kind = "recoverable"
	KindUnrecoverable Kind = "unrecoverable"

	// Recoverable kinds
	KindFontDescriptor    Kind = "font_descriptor"
	KindPDFParsing        Kind = "pdf_parsing"
	KindGenericConversion Kind = "generic_conversion"
	KindValidationFailed  Kind = "validation_failed"
	KindPermission        Kind = "permission"
	KindConversionMemory  Kind = "conversion_memory"

	// Unrecoverable kinds
	KindFileNotFound         Kind = "file_not_found"
	KindUnsupportedFileType  Kind = "unsupported_file_type"
	KindConversionTimeout    Kind = "conversion_timeout"
	KindGenericUnrecoverable Kind = "generic_unrecoverable"
)

// SkipHint is the only suggestion unrecoverable kinds carry.
const SkipHint = "Skip this file and continue with the rest of the batch"

// Info describes a kind: its machine code, recoverability, declared
// supertypes and default recovery suggestions.
type Info struct {
	Kind        Kind
	Code        string
	Recoverable bool
	Parents     []Kind
	Suggestions []string
}

var kinds = map[Kind]Info{
	KindConversion: {
		Kind: KindConversion, Code: "CONVERSION_ERROR", Recoverable: false,
		Suggestions: []string{SkipHint},
	},
	KindRecoverable: {
		Kind: KindRecoverable, Code: "RECOVERABLE_ERROR", Recoverable: true,
		Parents:     []Kind{KindConversion},
		Suggestions: []string{"Retry the conversion", "Try an alternative conversion method"},
	},
	KindUnrecoverable: {
		Kind: KindUnrecoverable, Code: "UNRECOVERABLE_ERROR", Recoverable: false,
		Parents:     []Kind{KindConversion},
		Suggestions: []string{SkipHint},
	},
	KindFontDescriptor: {
		Kind: KindFontDescriptor, Code: "FONT_DESCRIPTOR_ERROR", Recoverable: true,
		Parents: []Kind{KindPDFParsing, KindRecoverable},
		Suggestions: []string{
			"Re-save the PDF with embedded fonts",
			"Open the PDF in a viewer and print it to a new PDF",
			"Use text extraction instead of full conversion",
		},
	},
	KindPDFParsing: {
		Kind: KindPDFParsing, Code: "PDF_PARSING_ERROR", Recoverable: true,
		Parents: []Kind{KindRecoverable},
		Suggestions: []string{
			"Check that the PDF opens in a standard viewer",
			"Repair the PDF with a PDF tool and retry",
			"Use basic text extraction",
		},
	},
	KindGenericConversion: {
		Kind: KindGenericConversion, Code: "CONVERSION_FAILED", Recoverable: true,
		Parents: []Kind{KindRecoverable},
		Suggestions: []string{
			"Retry the conversion",
			"Check the file for corruption",
		},
	},
	KindValidationFailed: {
		Kind: KindValidationFailed, Code: "VALIDATION_FAILED", Recoverable: true,
		Parents: []Kind{KindRecoverable},
		Suggestions: []string{
			"Review the reported structural issues",
			"Re-export the document from its source application",
		},
	},
	KindPermission: {
		Kind: KindPermission, Code: "PERMISSION_DENIED", Recoverable: true,
		Parents: []Kind{KindRecoverable},
		Suggestions: []string{
			"Check read permissions on the input file",
			"Check write permissions on the output directory",
		},
	},
	KindConversionMemory: {
		Kind: KindConversionMemory, Code: "MEMORY_ERROR", Recoverable: true,
		Parents: []Kind{KindRecoverable},
		Suggestions: []string{
			"Close other applications to free memory",
			"Split the document into smaller parts",
			"Convert fewer files concurrently",
		},
	},
	KindFileNotFound: {
		Kind: KindFileNotFound, Code: "FILE_NOT_FOUND", Recoverable: false,
		Parents:     []Kind{KindUnrecoverable},
		Suggestions: []string{SkipHint},
	},
	KindUnsupportedFileType: {
		Kind: KindUnsupportedFileType, Code: "UNSUPPORTED_FILE_TYPE", Recoverable: false,
		Parents:     []Kind{KindUnrecoverable},
		Suggestions: []string{SkipHint},
	},
	KindConversionTimeout: {
		Kind: KindConversionTimeout, Code: "CONVERSION_TIMEOUT", Recoverable: false,
		Parents:     []Kind{KindUnrecoverable},
		Suggestions: []string{SkipHint},
	},
	KindGenericUnrecoverable: {
		Kind: KindGenericUnrecoverable, Code: "UNRECOVERABLE_ERROR", Recoverable: false,
		Parents:     []Kind{KindUnrecoverable},
		Suggestions: []string{SkipHint},
	},
}

// Lookup returns the descriptor for kind.
func Lookup(kind Kind) (Info, bool) {
	info, ok := kinds[kind]
	return info, ok
}

// Kinds returns every concrete (non-abstract) kind.
func Kinds() []Kind {
	return []Kind{
		KindFontDescriptor, KindPDFParsing, KindGenericConversion, KindValidationFailed,
		KindPermission, KindConversionMemory, KindFileNotFound, KindUnsupportedFileType,
		KindConversionTimeout, KindGenericUnrecoverable,
	}
}

// IsAbstract reports whether kind only exists as a supertype.
func IsAbstract(kind Kind) bool {
	return kind == KindConversion || kind == KindRecoverable || kind == KindUnrecoverable
}

// Recoverable reports whether errors of kind are worth retrying or
// falling back from. Unknown kinds are treated as unrecoverable.
func (k Kind) Recoverable() bool {
	info, ok := kinds[k]
	return ok && info.Recoverable
}

// Code returns the machine code for the kind.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.Code
	}
	return kinds[KindConversion].Code
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Lineage returns kind followed by all of its supertypes, nearest first.
// Breadth-first order means a direct parent always precedes a grandparent,
// and each kind appears once.
func Lineage(kind Kind) []Kind {
	out := []Kind{kind}
	seen := map[Kind]bool{kind: true}
	queue := []Kind{kind}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, parent := range kinds[current].Parents {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}

// IsA reports whether kind equals ancestor or declares it as a supertype.
func IsA(kind, ancestor Kind) bool {
	for _, k := range Lineage(kind) {
		if k == ancestor {
			return true
		}
	}
	return false
}
