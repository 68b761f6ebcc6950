package types

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileDescriptor describes one input file.
type FileDescriptor struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Extension string    `json:"extension,omitempty"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type,omitempty"`
	Modified  time.Time `json:"modified"`
}

// Describe stats path and builds its descriptor. MimeType is left for the
// caller to detect.
func Describe(path string) (FileDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileDescriptor{}, err
	}
	return FileDescriptor{
		Path:      path,
		Name:      info.Name(),
		Extension: strings.ToLower(filepath.Ext(path)),
		Size:      info.Size(),
		Modified:  info.ModTime(),
	}, nil
}

// Metadata returns a map form suitable for error report details.
func (f FileDescriptor) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"path":      f.Path,
		"name":      f.Name,
		"extension": f.Extension,
		"size":      f.Size,
		"mime_type": f.MimeType,
		"modified":  f.Modified,
	}
}

// ConversionStatus is the terminal status of a conversion attempt.
type ConversionStatus string

const (
	StatusSuccess   ConversionStatus = "success"
	StatusFailed    ConversionStatus = "failed"
	StatusCancelled ConversionStatus = "cancelled"
)

// ConversionResult is what a Converter or fallback strategy produces.
type ConversionResult struct {
	Status         ConversionStatus       `json:"status"`
	OutputPath     string                 `json:"output_path,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ConversionTime time.Duration          `json:"conversion_time"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Succeeded reports whether the result carries a successful status.
func (r *ConversionResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Success builds a successful result.
func Success(outputPath string, elapsed time.Duration, metadata map[string]interface{}) *ConversionResult {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &ConversionResult{
		Status:         StatusSuccess,
		OutputPath:     outputPath,
		ConversionTime: elapsed,
		Metadata:       metadata,
	}
}

// Failure builds a failed result.
func Failure(message string, elapsed time.Duration) *ConversionResult {
	return &ConversionResult{
		Status:         StatusFailed,
		ErrorMessage:   message,
		ConversionTime: elapsed,
		Metadata:       make(map[string]interface{}),
	}
}

// Converter converts a file into outputPath.
type Converter interface {
	Convert(ctx context.Context, file FileDescriptor, outputPath string) (*ConversionResult, error)
}

// ValidationResult lists structural issues found in a file.
type ValidationResult struct {
	Valid  bool     `json:"is_valid"`
	Issues []string `json:"issues,omitempty"`
}

// Validator checks files before conversion.
type Validator interface {
	CanValidate(file FileDescriptor) bool
	Validate(ctx context.Context, file FileDescriptor) (*ValidationResult, error)
}
