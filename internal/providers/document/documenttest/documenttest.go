// Package documenttest builds small documents for tests.
package documenttest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// PDF assembles a minimal PDF file object by object.
type PDF struct {
	objects []string
}

// NewPDF starts a document with a catalog and a page tree.
func NewPDF() *PDF {
	return &PDF{objects: []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}}
}

// Page adds a page dictionary.
func (p *PDF) Page() *PDF {
	p.objects = append(p.objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	return p
}

// FontDescriptor adds a font descriptor, with or without a FontBBox.
func (p *PDF) FontDescriptor(name string, bbox bool) *PDF {
	box := ""
	if bbox {
		box = " /FontBBox [-166 -225 1000 931]"
	}
	p.objects = append(p.objects, fmt.Sprintf(
		"<< /Type /FontDescriptor /FontName /%s /Flags 32%s /ItalicAngle 0 /Ascent 718 >>", name, box))
	return p
}

// Content adds a Flate-compressed content stream showing one line per
// argument.
func (p *PDF) Content(lines ...string) *PDF {
	var ops strings.Builder
	ops.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			ops.WriteString("0 -14 Td\n")
		}
		fmt.Fprintf(&ops, "(%s) Tj\n", escape(line))
	}
	ops.WriteString("ET\n")
	return p.Stream("/Filter /FlateDecode", Deflate([]byte(ops.String())))
}

// CorruptStream adds a stream that claims FlateDecode but is not.
func (p *PDF) CorruptStream() *PDF {
	return p.Stream("/Filter /FlateDecode", []byte("this is not deflate data"))
}

// Stream adds a stream object with extra dictionary entries.
func (p *PDF) Stream(dict string, data []byte) *PDF {
	p.objects = append(p.objects, fmt.Sprintf("<< /Length %d %s >>\nstream\n%s\nendstream", len(data), dict, data))
	return p
}

// Bytes renders the document with a cross-reference table and trailer.
func (p *PDF) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(p.objects))
	for i, obj := range p.objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(p.objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(p.objects)+1, xref)
	return b.Bytes()
}

// Truncated renders the document cut off before its cross-reference table.
func (p *PDF) Truncated() []byte {
	full := p.Bytes()
	return full[:bytes.Index(full, []byte("xref\n"))]
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}

// Deflate zlib-compresses data.
func Deflate(data []byte) []byte {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	w.Write(data)
	w.Close()
	return b.Bytes()
}

// Gzip gzip-compresses data.
func Gzip(data []byte) []byte {
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	w.Write(data)
	w.Close()
	return b.Bytes()
}

// Zstd zstd-compresses data.
func Zstd(data []byte) []byte {
	enc, _ := zstd.NewWriter(nil)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// WriteFile writes data under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
