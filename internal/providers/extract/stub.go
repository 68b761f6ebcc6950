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

// DiagnosticStub writes a placeholder explaining why the file could not
// be converted. It applies to every file and only fails when the output
// cannot be written.
type DiagnosticStub struct{}

// NewDiagnosticStub creates the strategy.
func NewDiagnosticStub() *DiagnosticStub {
	return &DiagnosticStub{}
}

func (s *DiagnosticStub) Name() string                               { return DiagnosticStubName }
func (s *DiagnosticStub) Priority() fallback.Priority                { return fallback.PriorityEmergency }
func (s *DiagnosticStub) CanHandle(types.FileDescriptor, error) bool { return true }

func (s *DiagnosticStub) Execute(_ context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error) {
	start := time.Now()

	ce := taxonomy.Classify(cause, file.Path)
	if ce == nil {
		ce = taxonomy.New(taxonomy.KindGenericConversion, "conversion failed")
	}

	var (
		out []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(outputPath), ".json") {
		out, err = document.CanonicalJSON(map[string]interface{}{
			"source":      filepath.Base(file.Path),
			"converted":   false,
			"error_code":  ce.Code(),
			"error":       ce.Message,
			"suggestions": ce.Suggestions,
		})
		if err != nil {
			return nil, err
		}
	} else {
		out = stubText(file, ce)
	}

	if err := document.WriteFile(outputPath, out); err != nil {
		return nil, err
	}
	return types.Success(outputPath, time.Since(start), map[string]interface{}{
		"method": DiagnosticStubName,
		"stub":   true,
	}), nil
}

func stubText(file types.FileDescriptor, ce *taxonomy.ConversionError) []byte {
	var b strings.Builder
	b.WriteString("docshield could not convert this file.\n\n")
	fmt.Fprintf(&b, "File: %s\n", filepath.Base(file.Path))
	fmt.Fprintf(&b, "Error: %s\n", ce.Message)
	fmt.Fprintf(&b, "Code: %s\n", ce.Code())
	if len(ce.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range ce.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return []byte(b.String())
}
