package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/providers/document"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the validator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMaxSize bounds the input read. Values <= 0 disable the check.
func WithMaxSize(n int64) Option {
	return func(v *Validator) {
		v.maxSize = n
	}
}

// Validator performs structural checks on the formats the converter
// understands. It never modifies the file.
type Validator struct {
	logger  *zap.Logger
	maxSize int64
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		logger:  zap.NewNop(),
		maxSize: 64 << 20,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CanValidate reports whether file has a recognised document extension.
func (v *Validator) CanValidate(file types.FileDescriptor) bool {
	return document.FormatOfExtension(file.Path) != document.FormatUnknown
}

// Validate lists structural issues. An error means the file could not be
// examined at all.
func (v *Validator) Validate(ctx context.Context, file types.FileDescriptor) (*types.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := document.ReadFile(file.Path, v.maxSize)
	if err != nil {
		if errors.Is(err, document.ErrTooLarge) {
			return nil, taxonomy.NewMemoryError(err.Error(), file.Size).WithLocation(file.Path)
		}
		return nil, fmt.Errorf("validate %s: %w", file.Name, err)
	}

	var issues []string
	if len(data) == 0 {
		issues = append(issues, "file is empty")
		return result(issues), nil
	}

	expected := document.FormatOfExtension(file.Path)
	det := document.Detect(file.Path, data)
	if det.Sniffed && det.Format != expected {
		issues = append(issues, fmt.Sprintf("content looks like %s but the extension says %s", det.Format, expected))
	}

	switch det.Format {
	case document.FormatPDF:
		issues = append(issues, pdfIssues(data)...)
	case document.FormatHTML:
		issues = append(issues, htmlIssues(data)...)
	case document.FormatJSON, document.FormatYAML, document.FormatTOML:
		if _, err := document.DecodeStructured(det.Format, data); err != nil {
			issues = append(issues, err.Error())
		}
	case document.FormatText, document.FormatMarkdown:
		if strings.ContainsRune(string(data), 0) {
			issues = append(issues, "text contains NUL bytes")
		}
	}

	if len(issues) > 0 {
		v.logger.Debug("Validation found issues",
			zap.String("file", file.Path),
			zap.Strings("issues", issues))
	}
	return result(issues), nil
}

func result(issues []string) *types.ValidationResult {
	return &types.ValidationResult{Valid: len(issues) == 0, Issues: issues}
}

func pdfIssues(data []byte) []string {
	doc, err := document.ParsePDF(data)
	if err != nil {
		return []string{err.Error()}
	}
	issues := append([]string(nil), doc.Issues...)
	for _, f := range doc.BrokenFonts() {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("object %d", f.Object)
		}
		issues = append(issues, fmt.Sprintf("font descriptor %s has no FontBBox", name))
	}
	return issues
}

func htmlIssues(data []byte) []string {
	doc, err := document.LoadHTML(data)
	if err != nil {
		return []string{err.Error()}
	}
	if document.HTMLText(doc) == "" {
		return []string{"html document has no text content"}
	}
	return nil
}
