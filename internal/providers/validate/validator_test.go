package validate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/providers/document/documenttest"
	"github.com/GriffinCanCode/docshield/internal/providers/validate"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   []byte
		valid  bool
		issues []string
	}{
		{
			name:  "clean pdf",
			file:  "ok.pdf",
			data:  documenttest.NewPDF().Page().FontDescriptor("Helvetica", true).Content("hi").Bytes(),
			valid: true,
		},
		{
			name:   "font descriptor without bbox",
			file:   "font.pdf",
			data:   documenttest.NewPDF().Page().FontDescriptor("BrokenSans", false).Content("hi").Bytes(),
			issues: []string{"font descriptor BrokenSans has no FontBBox"},
		},
		{
			name:   "truncated pdf",
			file:   "cut.pdf",
			data:   documenttest.NewPDF().Page().Content("hi").Truncated(),
			issues: []string{"missing startxref", "missing cross-reference table"},
		},
		{
			name:   "pdf without header",
			file:   "fake.pdf",
			data:   []byte("plain words"),
			issues: []string{"missing %PDF header"},
		},
		{
			name:   "extension mismatch",
			file:   "really-pdf.html",
			data:   documenttest.NewPDF().Page().Content("hi").Bytes(),
			issues: []string{"content looks like pdf but the extension says html"},
		},
		{
			name:   "broken json",
			file:   "a.json",
			data:   []byte(`{"a": `),
			issues: nil,
		},
		{
			name:  "valid yaml",
			file:  "a.yaml",
			data:  []byte("a: 1\n"),
			valid: true,
		},
		{
			name:   "empty file",
			file:   "empty.txt",
			data:   []byte{},
			issues: []string{"file is empty"},
		},
		{
			name:   "html without text",
			file:   "blank.html",
			data:   []byte("<html><body><script>x()</script></body></html>"),
			issues: []string{"html document has no text content"},
		},
	}

	v := validate.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := documenttest.WriteFile(t, t.TempDir(), tt.file, tt.data)
			fd, err := types.Describe(path)
			require.NoError(t, err)
			require.True(t, v.CanValidate(fd))

			res, err := v.Validate(context.Background(), fd)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Issues)
				return
			}
			assert.NotEmpty(t, res.Issues)
			for _, issue := range tt.issues {
				assert.Contains(t, res.Issues, issue)
			}
		})
	}
}

func TestCanValidate(t *testing.T) {
	v := validate.New()
	assert.True(t, v.CanValidate(types.FileDescriptor{Path: "a.PDF"}))
	assert.True(t, v.CanValidate(types.FileDescriptor{Path: "a.toml.zst"}))
	assert.False(t, v.CanValidate(types.FileDescriptor{Path: "a.docx"}))
}

func TestValidateMissingFile(t *testing.T) {
	fd := types.FileDescriptor{Path: filepath.Join(t.TempDir(), "nope.pdf"), Name: "nope.pdf"}
	_, err := validate.New().Validate(context.Background(), fd)
	require.Error(t, err)
	assert.Equal(t, taxonomy.KindFileNotFound, taxonomy.ClassifyKind(err))
}

func TestValidateTooLarge(t *testing.T) {
	path := documenttest.WriteFile(t, t.TempDir(), "big.txt", make([]byte, 64))
	fd, err := types.Describe(path)
	require.NoError(t, err)

	_, err = validate.New(validate.WithMaxSize(10)).Validate(context.Background(), fd)
	kind, ok := taxonomy.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.KindConversionMemory, kind)
}
