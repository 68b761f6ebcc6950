package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"
)

// ErrNotPDF is returned by ParsePDF when data has no %PDF header.
var ErrNotPDF = errors.New("missing %PDF header")

// maxInflate bounds a single decompressed stream.
const maxInflate = 64 << 20

var (
	objectPattern         = regexp.MustCompile(`(?s)(\d+)\s+\d+\s+obj\b(.*?)\bendobj`)
	fontDescriptorPattern = regexp.MustCompile(`/Type\s*/FontDescriptor\b`)
	fontNamePattern       = regexp.MustCompile(`/FontName\s*/([^\s/\[\]<>()]+)`)
	fontBBoxPattern       = regexp.MustCompile(`/FontBBox\s*\[`)
	pagePattern           = regexp.MustCompile(`/Type\s*/Page\b`)
	filterPattern         = regexp.MustCompile(`/Filter\s*\[?\s*/(\w+)`)
	xrefTablePattern      = regexp.MustCompile(`(?m)^\s*xref\b`)
	xrefStreamPattern     = regexp.MustCompile(`/Type\s*/XRef\b`)
)

// Font is a font descriptor found in a PDF.
type Font struct {
	Name    string `json:"name"`
	Object  int    `json:"object"`
	HasBBox bool   `json:"has_bbox"`
}

// PDF is the result of a structural scan. It is not a full parser: it
// finds objects, font descriptors and page dictionaries with pattern
// matching and pulls text out of content streams.
type PDF struct {
	Version            string   `json:"version"`
	Objects            int      `json:"objects"`
	Pages              int      `json:"pages"`
	Streams            int      `json:"streams"`
	UndecodableStreams int      `json:"undecodable_streams"`
	Fonts              []Font   `json:"fonts,omitempty"`
	Text               string   `json:"-"`
	Issues             []string `json:"issues,omitempty"`
}

// BrokenFonts returns font descriptors without a FontBBox.
func (p *PDF) BrokenFonts() []Font {
	var out []Font
	for _, f := range p.Fonts {
		if !f.HasBBox {
			out = append(out, f)
		}
	}
	return out
}

// ParsePDF scans data. Only a missing header is an error; every other
// problem is collected in Issues so lenient callers can still use Text.
func ParsePDF(data []byte) (*PDF, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	at := bytes.Index(head, []byte("%PDF-"))
	if at < 0 {
		return nil, ErrNotPDF
	}

	doc := &PDF{}
	if v := data[at+5:]; len(v) >= 3 {
		doc.Version = string(v[:3])
	}

	var text strings.Builder
	for _, m := range objectPattern.FindAllSubmatch(data, -1) {
		doc.Objects++
		num, _ := strconv.Atoi(string(m[1]))
		body := m[2]

		dict := body
		if i := bytes.Index(body, []byte("stream")); i >= 0 {
			dict = body[:i]
		}
		if fontDescriptorPattern.Match(dict) {
			f := Font{Object: num, HasBBox: fontBBoxPattern.Match(dict)}
			if name := fontNamePattern.FindSubmatch(dict); name != nil {
				f.Name = string(name[1])
			}
			doc.Fonts = append(doc.Fonts, f)
		}
		if pagePattern.Match(dict) {
			doc.Pages++
		}

		content, ok, isStream := streamContent(body)
		if !isStream {
			continue
		}
		doc.Streams++
		if !ok {
			doc.UndecodableStreams++
			continue
		}
		if bytes.Contains(content, []byte("BT")) {
			if t := contentText(content); t != "" {
				text.WriteString(t)
				text.WriteString("\n\n")
			}
		}
	}
	doc.Text = NormalizeLines(text.String())

	if bytes.LastIndex(data, []byte("%%EOF")) < 0 {
		doc.Issues = append(doc.Issues, "missing %%EOF marker, the file may be truncated")
	}
	if !bytes.Contains(data, []byte("startxref")) {
		doc.Issues = append(doc.Issues, "missing startxref")
	}
	if !xrefTablePattern.Match(data) && !xrefStreamPattern.Match(data) {
		doc.Issues = append(doc.Issues, "missing cross-reference table")
	}
	if doc.Objects == 0 {
		doc.Issues = append(doc.Issues, "no objects found")
	} else if doc.Pages == 0 {
		doc.Issues = append(doc.Issues, "no page objects found")
	}
	if doc.UndecodableStreams > 0 {
		doc.Issues = append(doc.Issues, fmt.Sprintf("%d of %d streams could not be decompressed", doc.UndecodableStreams, doc.Streams))
	}
	return doc, nil
}

// streamContent returns the decoded stream of an object body. ok is false
// when the stream uses FlateDecode and fails to inflate; streams with
// other filters come back empty and ok.
func streamContent(body []byte) (content []byte, ok, isStream bool) {
	start := bytes.Index(body, []byte("stream"))
	end := bytes.LastIndex(body, []byte("endstream"))
	if start < 0 || end < 0 || end <= start {
		return nil, false, false
	}
	dict := body[:start]
	raw := body[start+len("stream") : end]
	raw = bytes.TrimPrefix(raw, []byte("\r"))
	raw = bytes.TrimPrefix(raw, []byte("\n"))

	filter := ""
	if m := filterPattern.FindSubmatch(dict); m != nil {
		filter = string(m[1])
	}
	switch filter {
	case "":
		return raw, true, true
	case "FlateDecode":
		out, err := inflate(raw)
		if err != nil && len(out) == 0 {
			return nil, false, true
		}
		return out, true, true
	default:
		return nil, true, true
	}
}

func inflate(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflate))
}

// contentText pulls the strings shown by Tj, TJ, ' and " out of a content
// stream.
func contentText(data []byte) string {
	var (
		b       strings.Builder
		pending []string
		nums    []float64
	)
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	show := func() {
		for _, s := range pending {
			b.WriteString(s)
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(data[i:])
			pending = append(pending, decodeString(s))
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			s, n := readHex(data[i:])
			pending = append(pending, decodeString(s))
			i += n
		case isDelimiter(c) || isSpace(c):
			i++
		case c == '/':
			i++
			for i < len(data) && !isDelimiter(data[i]) && !isSpace(data[i]) {
				i++
			}
		default:
			j := i
			for j < len(data) && !isDelimiter(data[j]) && !isSpace(data[j]) {
				j++
			}
			tok := string(data[i:j])
			i = j
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				nums = append(nums, f)
				continue
			}
			switch tok {
			case "BT":
				pending = nil
			case "ET", "T*", "Tm":
				newline()
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else if b.Len() > 0 {
					b.WriteByte(' ')
				}
			case "Tj", "TJ":
				show()
			case "'", "\"":
				newline()
				show()
			}
			pending, nums = nil, nil
		}
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// readLiteral reads a (string) starting at data[0] and returns its bytes
// and the number of input bytes consumed.
func readLiteral(data []byte) ([]byte, int) {
	var out []byte
	depth := 0
	i := 0
	for i < len(data) {
		c := data[i]
		switch c {
		case '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
			out = append(out, c)
		case '\\':
			i++
			if i >= len(data) {
				return out, i
			}
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := 0
					k := 0
					for ; k < 3 && i+k < len(data) && data[i+k] >= '0' && data[i+k] <= '7'; k++ {
						v = v*8 + int(data[i+k]-'0')
					}
					out = append(out, byte(v))
					i += k - 1
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
		i++
	}
	return out, i
}

// readHex reads a <hex string> starting at data[0].
func readHex(data []byte) ([]byte, int) {
	var (
		out    []byte
		digits []byte
	)
	i := 1
	for ; i < len(data) && data[i] != '>'; i++ {
		if v, ok := hexValue(data[i]); ok {
			digits = append(digits, v)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, 0)
	}
	for k := 0; k < len(digits); k += 2 {
		out = append(out, digits[k]<<4|digits[k+1])
	}
	return out, i + 1
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeString turns a PDF string into text: UTF-16BE when it carries a
// byte order mark, Latin-1 otherwise. Control characters are dropped.
func decodeString(s []byte) string {
	var runes []rune
	if len(s) >= 2 && s[0] == 0xfe && s[1] == 0xff {
		units := make([]uint16, 0, len(s)/2)
		for k := 2; k+1 < len(s); k += 2 {
			units = append(units, uint16(s[k])<<8|uint16(s[k+1]))
		}
		runes = utf16.Decode(units)
	} else {
		runes = make([]rune, len(s))
		for k, c := range s {
			runes[k] = rune(c)
		}
	}

	var b strings.Builder
	for _, r := range runes {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
