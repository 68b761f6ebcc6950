package taxonomy

import (
	"errors"
	"fmt"
)

// ConversionError is a kind-tagged failure raised by converters, validators
// or the resilience layer itself.
type ConversionError struct {
	Kind           Kind
	Message        string
	Suggestions    []string
	Details        map[string]interface{}
	SourceLocation string
	Cause          error
}

// New creates a ConversionError of the given kind with the kind's default
// suggestions.
func New(kind Kind, message string) *ConversionError {
	info, ok := kinds[kind]
	if !ok || IsAbstract(kind) {
		kind = KindGenericConversion
		info = kinds[kind]
	}
	return &ConversionError{
		Kind:        kind,
		Message:     message,
		Suggestions: append([]string(nil), info.Suggestions...),
		Details:     make(map[string]interface{}),
	}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...interface{}) *ConversionError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates a ConversionError of kind around cause.
func Wrap(kind Kind, message string, cause error) *ConversionError {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Code returns the machine code of the error's kind.
func (e *ConversionError) Code() string {
	return e.Kind.Code()
}

// Recoverable reports whether the error's kind is recoverable.
func (e *ConversionError) Recoverable() bool {
	return e.Kind.Recoverable()
}

// IsKind reports whether the error is of kind or one of its subkinds.
func (e *ConversionError) IsKind(kind Kind) bool {
	return IsA(e.Kind, kind)
}

// WithDetail attaches a structured detail.
func (e *ConversionError) WithDetail(key string, value interface{}) *ConversionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithLocation records the path of the offending file.
func (e *ConversionError) WithLocation(path string) *ConversionError {
	e.SourceLocation = path
	return e
}

// WithSuggestions appends suggestions. Unrecoverable kinds keep only the
// generic skip hint.
func (e *ConversionError) WithSuggestions(suggestions ...string) *ConversionError {
	if !e.Recoverable() {
		return e
	}
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// NewFontDescriptorError reports a broken font descriptor in a PDF.
func NewFontDescriptorError(fontName string, page int, message string) *ConversionError {
	e := New(KindFontDescriptor, message)
	if fontName != "" {
		e.WithDetail("font_name", fontName)
	}
	if page > 0 {
		e.WithDetail("page_number", page)
	}
	return e
}

// NewPDFParsingError reports a structural PDF problem.
func NewPDFParsingError(message string, page int) *ConversionError {
	e := New(KindPDFParsing, message)
	if page > 0 {
		e.WithDetail("page_number", page)
	}
	return e
}

// NewMemoryError reports memory exhaustion while converting.
func NewMemoryError(message string, sizeBytes int64) *ConversionError {
	e := New(KindConversionMemory, message)
	if sizeBytes > 0 {
		e.WithDetail("file_size", sizeBytes)
	}
	return e
}

// NewTimeoutError reports a conversion that exceeded its time budget.
func NewTimeoutError(message string, limitSeconds float64) *ConversionError {
	return New(KindConversionTimeout, message).WithDetail("timeout_seconds", limitSeconds)
}

// NewValidationError reports structural validation issues.
func NewValidationError(issues []string) *ConversionError {
	msg := "document failed validation"
	if len(issues) > 0 {
		msg = fmt.Sprintf("document failed validation: %s", issues[0])
	}
	return New(KindValidationFailed, msg).WithDetail("issues", issues)
}

// NewUnsupportedError reports a file type no converter understands.
func NewUnsupportedError(mimeType string) *ConversionError {
	return Newf(KindUnsupportedFileType, "unsupported file type %q", mimeType).
		WithDetail("mime_type", mimeType)
}

// AsConversionError extracts a ConversionError from err's chain.
func AsConversionError(err error) (*ConversionError, bool) {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the kind carried by err, or ok=false when err carries none.
func KindOf(err error) (Kind, bool) {
	if ce, ok := AsConversionError(err); ok {
		return ce.Kind, true
	}
	return "", false
}

// FromPanic converts a recovered panic value into a ConversionError.
func FromPanic(v interface{}) *ConversionError {
	if err, ok := v.(error); ok {
		if ce, ok := AsConversionError(err); ok {
			return ce
		}
		c := Classify(err, "")
		c.WithDetail("panic", true)
		return c
	}
	return Newf(KindGenericConversion, "panic: %v", v).WithDetail("panic", true)
}
