package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/providers/document"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// DefaultMaxSize is the largest decompressed input the converter accepts.
const DefaultMaxSize = 64 << 20

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the converter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxSize sets the input size limit. Values <= 0 disable it.
func WithMaxSize(n int64) Option {
	return func(c *Converter) {
		c.maxSize = n
	}
}

// Converter is the strict primary converter. Documents become UTF-8 text
// and structured data becomes canonical JSON. Anything it cannot convert
// faithfully is reported as a classified error so recovery can take over.
type Converter struct {
	logger  *zap.Logger
	maxSize int64
}

// New creates a converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		logger:  zap.NewNop(),
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert implements types.Converter.
func (c *Converter) Convert(ctx context.Context, file types.FileDescriptor, outputPath string) (*types.ConversionResult, error) {
	start := time.Now()
	if err := contextError(ctx); err != nil {
		return nil, err
	}

	data, err := document.ReadFile(file.Path, c.maxSize)
	if err != nil {
		if errors.Is(err, document.ErrTooLarge) {
			return nil, taxonomy.NewMemoryError(err.Error(), file.Size).WithLocation(file.Path)
		}
		return nil, fmt.Errorf("read input: %w", err)
	}

	det := document.Detect(file.Path, data)
	var (
		out  []byte
		meta = map[string]interface{}{
			"format":    string(det.Format),
			"mime_type": det.MimeType,
			"bytes_in":  len(data),
		}
	)
	if det.Compression != document.CompressionNone {
		meta["compression"] = string(det.Compression)
	}

	switch det.Format {
	case document.FormatPDF:
		out, err = convertPDF(data, meta)
	case document.FormatHTML:
		out, err = convertHTML(data, meta)
	case document.FormatMarkdown, document.FormatText:
		out, err = convertText(data, meta)
	case document.FormatJSON, document.FormatYAML, document.FormatTOML:
		out, err = convertStructured(det.Format, data)
	default:
		err = taxonomy.NewUnsupportedError(det.MimeType)
	}
	if err != nil {
		return nil, locate(err, file.Path)
	}
	if err := contextError(ctx); err != nil {
		return nil, err
	}

	if err := document.WriteFile(outputPath, out); err != nil {
		return nil, err
	}
	meta["bytes_out"] = len(out)

	elapsed := time.Since(start)
	c.logger.Debug("Converted document",
		zap.String("file", file.Path),
		zap.String("format", string(det.Format)),
		zap.Duration("duration", elapsed))
	return types.Success(outputPath, elapsed, meta), nil
}

func convertPDF(data []byte, meta map[string]interface{}) ([]byte, error) {
	doc, err := document.ParsePDF(data)
	if err != nil {
		return nil, taxonomy.NewPDFParsingError(err.Error(), 0)
	}
	meta["pages"] = doc.Pages
	meta["pdf_version"] = doc.Version

	if broken := doc.BrokenFonts(); len(broken) > 0 {
		f := broken[0]
		return nil, taxonomy.NewFontDescriptorError(f.Name, 0,
			fmt.Sprintf("font descriptor %s (object %d) has no FontBBox", fontLabel(f), f.Object)).
			WithDetail("broken_fonts", len(broken))
	}
	if len(doc.Issues) > 0 {
		return nil, taxonomy.NewPDFParsingError(doc.Issues[0], 0).WithDetail("issues", doc.Issues)
	}
	if doc.Text == "" {
		return nil, taxonomy.NewPDFParsingError("pdf has no extractable text", 0)
	}
	return []byte(doc.Text + "\n"), nil
}

func fontLabel(f document.Font) string {
	if f.Name == "" {
		return "(unnamed)"
	}
	return f.Name
}

func convertHTML(data []byte, meta map[string]interface{}) ([]byte, error) {
	doc, err := document.LoadHTML(data)
	if err != nil {
		return nil, taxonomy.Wrap(taxonomy.KindGenericConversion, "html could not be parsed", err)
	}
	title := document.HTMLTitle(doc)
	text := document.HTMLText(doc)
	if text == "" {
		return nil, taxonomy.New(taxonomy.KindGenericConversion, "html document has no text content")
	}
	if title != "" {
		meta["title"] = title
		if !strings.HasPrefix(text, title) {
			text = title + "\n\n" + text
		}
	}
	return []byte(text + "\n"), nil
}

func convertText(data []byte, meta map[string]interface{}) ([]byte, error) {
	text, cs := document.ToUTF8(data)
	meta["charset"] = cs
	if len(strings.TrimSpace(string(text))) == 0 {
		return nil, taxonomy.New(taxonomy.KindGenericConversion, "document is empty")
	}
	return []byte(strings.ReplaceAll(string(text), "\r\n", "\n")), nil
}

func convertStructured(format document.Format, data []byte) ([]byte, error) {
	parsed, err := document.DecodeStructured(format, data)
	if err != nil {
		return nil, taxonomy.Wrap(taxonomy.KindGenericConversion, fmt.Sprintf("%s could not be parsed", format), err)
	}
	return document.CanonicalJSON(parsed)
}

func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return taxonomy.NewTimeoutError("conversion deadline exceeded", 0)
	}
	return err
}

func locate(err error, path string) error {
	if ce, ok := taxonomy.AsConversionError(err); ok && ce.SourceLocation == "" {
		ce.WithLocation(path)
	}
	return err
}
