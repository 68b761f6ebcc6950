package document

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// DetectCharset returns the most likely charset of data, lower-cased.
// Undecidable input is reported as utf-8.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// ToUTF8 decodes data into UTF-8. Valid UTF-8 is returned untouched;
// anything else is transcoded from its detected charset.
func ToUTF8(data []byte) ([]byte, string) {
	if utf8.Valid(data) {
		return data, "utf-8"
	}

	detected := DetectCharset(data)
	r, err := charset.NewReaderLabel(detected, bytes.NewReader(data))
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("�")), detected
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("�")), detected
	}
	return out, detected
}

// NormalizeWhitespace collapses runs of whitespace into one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLines collapses whitespace inside each line, drops repeated
// blank lines and trims the result.
func NormalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")

	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = NormalizeWhitespace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// PrintableRuns returns runs of at least minLen printable characters,
// one per line.
func PrintableRuns(data []byte, minLen int) string {
	var (
		b   strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minLen {
			b.WriteString(strings.TrimSpace(string(run)))
			b.WriteByte('\n')
		}
		run = run[:0]
	}

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError || !(r == ' ' || r == '\t' || (r >= 0x21 && r != 0x7f && !(r >= 0x80 && r < 0xa0))) {
			flush()
			continue
		}
		run = append(run, r)
	}
	flush()
	return strings.TrimSpace(b.String())
}
