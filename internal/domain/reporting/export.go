package reporting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

const separator = "----------------------------------------"

// Encode renders reports in the given format.
func Encode(reports []ErrorReport, format Format) ([]byte, error) {
	if reports == nil {
		reports = []ErrorReport{}
	}
	switch format {
	case FormatJSON:
		return sonic.MarshalIndent(reports, "", "  ")
	case FormatYAML:
		return yaml.Marshal(reports)
	case FormatText:
		return encodeText(reports), nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

func encodeText(reports []ErrorReport) []byte {
	var b bytes.Buffer
	for _, r := range reports {
		fmt.Fprintf(&b, "[%s] %s\n", r.Severity, r.Title)
		fmt.Fprintf(&b, "Time: %s\n", r.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&b, "Message: %s\n", r.Message)
		if r.UserFacingMessage != "" {
			fmt.Fprintf(&b, "Details: %s\n", r.UserFacingMessage)
		}
		if r.FilePath != "" {
			fmt.Fprintf(&b, "File: %s\n", r.FilePath)
		}
		if len(r.RecoverySuggestions) > 0 {
			b.WriteString("Suggestions:\n")
			for _, s := range r.RecoverySuggestions {
				fmt.Fprintf(&b, "  - %s\n", s)
			}
		}
		b.WriteString(separator)
		b.WriteString("\n")
	}
	return b.Bytes()
}

// Dump writes the current history to w.
func (r *Reporter) Dump(w io.Writer, format Format) error {
	data, err := Encode(r.Reports(Filter{}), format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Export writes the current history to path, creating parent directories.
func (r *Reporter) Export(path string, format Format) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("export reports: %v", p)
		}
	}()

	data, err := Encode(r.Reports(Filter{}), format)
	if err != nil {
		return fmt.Errorf("export reports: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export reports: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export reports: %w", err)
	}
	return nil
}

// LoadReports reads a structured export written by Export. The format is
// taken from the file extension.
func LoadReports(path string) ([]ErrorReport, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	return Decode(data, format)
}

// Decode parses a structured export.
func Decode(data []byte, format Format) ([]ErrorReport, error) {
	var reports []ErrorReport
	switch format {
	case FormatJSON:
		err := sonic.Unmarshal(data, &reports)
		if err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &reports); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
	default:
		return nil, fmt.Errorf("format %q cannot be re-imported", format)
	}
	return reports, nil
}
