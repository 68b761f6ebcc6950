package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/providers/document"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

const (
	BasicTextName      = "basic_text_extraction"
	PrintableScanName  = "printable_text_scan"
	DiagnosticStubName = "diagnostic_stub"
)

// minRun is the shortest printable run PrintableScan keeps.
const minRun = 4

// Defaults returns the built-in strategies. maxSize bounds the input they
// read; includeStub adds DiagnosticStub as the last resort.
func Defaults(maxSize int64, includeStub bool) []fallback.Strategy {
	strategies := []fallback.Strategy{
		NewBasicText(maxSize),
		NewPrintableScan(maxSize),
	}
	if includeStub {
		strategies = append(strategies, NewDiagnosticStub())
	}
	return strategies
}

// BasicText extracts whatever text a lenient reading of the file yields:
// PDF text is taken even when fonts or the cross-reference table are
// broken, unparseable HTML has its tags stripped, and structured data that
// fails to parse is kept verbatim inside a JSON envelope.
type BasicText struct {
	maxSize int64
}

// NewBasicText creates the strategy. maxSize <= 0 disables the size check.
func NewBasicText(maxSize int64) *BasicText {
	return &BasicText{maxSize: maxSize}
}

func (s *BasicText) Name() string                { return BasicTextName }
func (s *BasicText) Priority() fallback.Priority { return fallback.PriorityHigh }

// CanHandle accepts every format the extractor recognises.
func (s *BasicText) CanHandle(file types.FileDescriptor, _ error) bool {
	if document.FormatOfExtension(file.Path) != document.FormatUnknown {
		return true
	}
	return strings.HasPrefix(file.MimeType, "text/")
}

func (s *BasicText) Execute(ctx context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error) {
	start := time.Now()
	data, err := document.ReadFile(file.Path, s.maxSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	det := document.Detect(file.Path, data)
	var (
		out      []byte
		warnings []string
	)
	switch det.Format {
	case document.FormatPDF:
		var text string
		text, warnings = pdfText(data)
		out = []byte(text)
	case document.FormatHTML:
		out = []byte(htmlText(data))
	case document.FormatJSON, document.FormatYAML, document.FormatTOML:
		out, err = envelope(file, data, cause)
		if err != nil {
			return nil, err
		}
	default:
		text, _ := document.ToUTF8(data)
		out = []byte(document.NormalizeLines(string(text)))
	}

	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, taxonomy.New(taxonomy.KindGenericConversion, "no text could be recovered").WithLocation(file.Path)
	}
	if out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	if err := document.WriteFile(outputPath, out); err != nil {
		return nil, err
	}

	meta := map[string]interface{}{
		"method": BasicTextName,
		"format": string(det.Format),
	}
	if len(warnings) > 0 {
		meta["warnings"] = warnings
	}
	return types.Success(outputPath, time.Since(start), meta), nil
}

func pdfText(data []byte) (string, []string) {
	doc, err := document.ParsePDF(data)
	if err != nil {
		return "", []string{err.Error()}
	}
	warnings := append([]string(nil), doc.Issues...)
	for _, f := range doc.BrokenFonts() {
		warnings = append(warnings, fmt.Sprintf("font %s has no FontBBox", f.Name))
	}
	return doc.Text, warnings
}

func htmlText(data []byte) string {
	doc, err := document.LoadHTML(data)
	if err == nil {
		title := document.HTMLTitle(doc)
		if text := document.HTMLText(doc); text != "" {
			if title != "" && !strings.HasPrefix(text, title) {
				return title + "\n\n" + text
			}
			return text
		}
	}
	text, _ := document.ToUTF8(data)
	return document.StripTags(string(text))
}

func envelope(file types.FileDescriptor, data []byte, cause error) ([]byte, error) {
	text, _ := document.ToUTF8(data)
	if strings.TrimSpace(string(text)) == "" {
		return nil, nil
	}
	doc := map[string]interface{}{
		"source":    filepath.Base(file.Path),
		"recovered": true,
		"raw":       string(text),
	}
	if cause != nil {
		doc["error"] = cause.Error()
	}
	return document.CanonicalJSON(doc)
}

// PrintableScan keeps every run of printable characters in the file. It
// applies to anything that is not structured data and is the strategy of
// choice for binaries masquerading as documents.
type PrintableScan struct {
	maxSize int64
}

// NewPrintableScan creates the strategy. maxSize <= 0 disables the size
// check.
func NewPrintableScan(maxSize int64) *PrintableScan {
	return &PrintableScan{maxSize: maxSize}
}

func (s *PrintableScan) Name() string                { return PrintableScanName }
func (s *PrintableScan) Priority() fallback.Priority { return fallback.PriorityLow }

func (s *PrintableScan) CanHandle(file types.FileDescriptor, _ error) bool {
	return !document.FormatOfExtension(file.Path).Structured()
}

func (s *PrintableScan) Execute(ctx context.Context, file types.FileDescriptor, outputPath string, _ error) (*types.ConversionResult, error) {
	start := time.Now()
	data, err := document.ReadFile(file.Path, s.maxSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := document.PrintableRuns(data, minRun)
	if text == "" {
		return nil, taxonomy.New(taxonomy.KindGenericConversion, "file has no printable text").WithLocation(file.Path)
	}
	if err := document.WriteFile(outputPath, []byte(text+"\n")); err != nil {
		return nil, err
	}
	return types.Success(outputPath, time.Since(start), map[string]interface{}{
		"method": PrintableScanName,
	}), nil
}
