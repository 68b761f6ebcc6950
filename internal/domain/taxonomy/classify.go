package taxonomy

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
)

type patternKindPair struct {
	pattern *regexp.Regexp
	kind    Kind
}

// Order matters: a "FontBBox" failure message usually mentions "pdf" too,
// and must still land on the more specific kind.
var messagePatterns = []patternKindPair{
	{regexp.MustCompile(`(?i)fontbbox|font\s*descriptor|fontfile`), KindFontDescriptor},
	{regexp.MustCompile(`(?i)out of memory|memory|cannot allocate`), KindConversionMemory},
	{regexp.MustCompile(`(?i)timeout|timed out|deadline exceeded`), KindConversionTimeout},
	{regexp.MustCompile(`(?i)unsupported|unknown file type|unrecognized format`), KindUnsupportedFileType},
	{regexp.MustCompile(`(?i)permission denied|access denied|not permitted`), KindPermission},
	{regexp.MustCompile(`(?i)no such file|file not found|does not exist`), KindFileNotFound},
	{regexp.MustCompile(`(?i)pdf|xref|trailer|startxref`), KindPDFParsing},
}

// Classify assigns a kind to a raw failure. Errors that already carry a
// kind are returned unchanged; everything else is wrapped. path, when
// non-empty, is recorded as the source location.
func Classify(err error, path string) *ConversionError {
	if err == nil {
		return nil
	}

	if ce, ok := AsConversionError(err); ok {
		if ce.SourceLocation == "" && path != "" {
			ce.SourceLocation = path
		}
		return ce
	}

	kind := classifyKind(err)
	ce := Wrap(kind, describe(kind), err)
	if path != "" {
		ce.SourceLocation = path
	}
	return ce
}

// ClassifyKind returns only the kind Classify would assign.
func ClassifyKind(err error) Kind {
	if err == nil {
		return KindGenericConversion
	}
	if kind, ok := KindOf(err); ok {
		return kind
	}
	return classifyKind(err)
}

func classifyKind(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, context.DeadlineExceeded):
		return KindConversionTimeout
	}

	msg := err.Error()
	for _, pair := range messagePatterns {
		if pair.pattern.MatchString(msg) {
			return pair.kind
		}
	}
	return KindGenericConversion
}

func describe(kind Kind) string {
	switch kind {
	case KindFontDescriptor:
		return "font descriptor error"
	case KindConversionMemory:
		return "out of memory during conversion"
	case KindConversionTimeout:
		return "conversion timed out"
	case KindUnsupportedFileType:
		return "unsupported file type"
	case KindPermission:
		return "permission denied"
	case KindFileNotFound:
		return "file not found"
	case KindPDFParsing:
		return "PDF parsing failed"
	default:
		return "conversion failed"
	}
}
