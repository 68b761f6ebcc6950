package document

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is the document family a file belongs to.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTOML     Format = "toml"
	FormatUnknown  Format = "unknown"
)

var extensionFormats = map[string]Format{
	".pdf":      FormatPDF,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".xhtml":    FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".text":     FormatText,
	".log":      FormatText,
	".json":     FormatJSON,
	".yaml":     FormatYAML,
	".yml":      FormatYAML,
	".toml":     FormatTOML,
}

// Structured reports whether the format carries data rather than prose.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML || f == FormatTOML
}

// OutputExtension is the extension of the converted file.
func (f Format) OutputExtension() string {
	switch {
	case f.Structured():
		return ".json"
	case f == FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// FormatOfExtension maps a file name onto a format, ignoring any
// compression suffix.
func FormatOfExtension(path string) Format {
	ext := strings.ToLower(filepath.Ext(StripCompression(path)))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	return FormatUnknown
}

// Detection is the outcome of sniffing a document.
type Detection struct {
	Format      Format      `json:"format"`
	MimeType    string      `json:"mime_type"`
	Compression Compression `json:"compression,omitempty"`
	// Sniffed is true when the content alone decided the format.
	Sniffed bool `json:"sniffed"`
}

// Detect sniffs data, falling back to the extension when the content is
// plain text or unrecognised.
func Detect(path string, data []byte) Detection {
	return detect(path, mimetype.Detect(data))
}

// DetectFile sniffs the decompressed head of path.
func DetectFile(path string) (Detection, error) {
	rc, err := Open(path)
	if err != nil {
		return Detection{}, err
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(rc)
	if err != nil && err != io.EOF {
		return Detection{}, err
	}
	return detect(path, mtype), nil
}

func detect(path string, mtype *mimetype.MIME) Detection {
	d := Detection{
		Format:      FormatUnknown,
		MimeType:    "application/octet-stream",
		Compression: CompressionOf(path),
	}
	if mtype != nil {
		d.MimeType = mtype.String()
	}

	switch {
	case mtype == nil:
	case mtype.Is("application/pdf"):
		d.Format, d.Sniffed = FormatPDF, true
		return d
	case mtype.Is("text/html"), mtype.Is("application/xhtml+xml"):
		d.Format, d.Sniffed = FormatHTML, true
		return d
	case mtype.Is("application/json"):
		d.Format, d.Sniffed = FormatJSON, true
		return d
	}

	if byExt := FormatOfExtension(path); byExt != FormatUnknown {
		d.Format = byExt
		return d
	}
	if isText(mtype) {
		d.Format = FormatText
	}
	return d
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
