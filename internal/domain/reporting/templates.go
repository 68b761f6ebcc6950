package reporting

import (
	"strings"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

// template holds the user-facing text for one kind. {file} is replaced by
// the file name.
type template struct {
	Title       string
	Message     string
	Suggestions []string
}

var templates = map[taxonomy.Kind]template{
	taxonomy.KindFontDescriptor: {
		Title:   "Font problem in PDF",
		Message: "{file} uses a font whose descriptor is missing or damaged, so its text could not be read reliably.",
		Suggestions: []string{
			"Open the PDF and print it to a new PDF to rebuild the fonts",
			"Ask the author for a copy with embedded fonts",
		},
	},
	taxonomy.KindPDFParsing: {
		Title:   "PDF could not be read",
		Message: "{file} appears to be damaged or uses PDF features the converter does not understand.",
		Suggestions: []string{
			"Check that the file opens in a PDF viewer",
			"Re-save the PDF and try again",
		},
	},
	taxonomy.KindGenericConversion: {
		Title:       "Conversion failed",
		Message:     "{file} could not be converted.",
		Suggestions: []string{"Try converting the file again"},
	},
	taxonomy.KindValidationFailed: {
		Title:   "Document structure problems",
		Message: "{file} has structural problems that prevented a clean conversion.",
		Suggestions: []string{
			"Re-export the document from the application that created it",
		},
	},
	taxonomy.KindPermission: {
		Title:   "Permission denied",
		Message: "docshield was not allowed to read {file} or write its output.",
		Suggestions: []string{
			"Check that you can open the file",
			"Choose an output folder you can write to",
		},
	},
	taxonomy.KindConversionMemory: {
		Title:   "Not enough memory",
		Message: "Converting {file} needed more memory than was available.",
		Suggestions: []string{
			"Convert this file on its own",
			"Lower the number of workers",
		},
	},
	taxonomy.KindFileNotFound: {
		Title:   "File not found",
		Message: "{file} no longer exists or was moved during the batch.",
	},
	taxonomy.KindUnsupportedFileType: {
		Title:   "Unsupported file type",
		Message: "{file} is not a format docshield can convert.",
	},
	taxonomy.KindConversionTimeout: {
		Title:   "Conversion took too long",
		Message: "Converting {file} did not finish in time and was stopped.",
	},
	taxonomy.KindGenericUnrecoverable: {
		Title:   "File cannot be converted",
		Message: "{file} failed in a way that retrying will not fix.",
	},
}

var (
	severityTemplates = map[Severity]template{
		SeverityCritical: {
			Title:   "System problem",
			Message: "The system ran out of a resource while processing {file}.",
			Suggestions: []string{
				"Close other applications and retry",
				"Free disk space and retry",
			},
		},
		SeverityWarning: {
			Title:       "Unexpected value",
			Message:     "{file} contained a value that could not be interpreted.",
			Suggestions: []string{"Check the file contents for typos or truncation"},
		},
	}
	genericTemplate = template{
		Title:       "Unexpected error",
		Message:     "An unexpected error occurred while processing {file}.",
		Suggestions: []string{"Try again", "Check the log for technical details"},
	}
)

// templateFor picks the template for a kind, then for a severity, then
// the generic one.
func templateFor(kind taxonomy.Kind, severity Severity) template {
	if kind != "" {
		for _, k := range taxonomy.Lineage(kind) {
			if t, ok := templates[k]; ok {
				return t
			}
		}
	}
	if t, ok := severityTemplates[severity]; ok {
		return t
	}
	return genericTemplate
}

func (t template) render(file string) (title, message string) {
	if file == "" {
		file = "the file"
	}
	r := strings.NewReplacer("{file}", file)
	return t.Title, r.Replace(t.Message)
}

// mergeSuggestions appends extra to base, dropping duplicates and empty
// strings while keeping order.
func mergeSuggestions(base []string, extra ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(base))
	add := func(list []string) {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	add(base)
	for _, e := range extra {
		add(e)
	}
	return out
}
