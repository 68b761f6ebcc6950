package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB.
const MaxHTMLSize = 10 * 1024 * 1024

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true,
	"title": true, "tr": true, "ul": true,
}

// ValidateHTML checks HTML size.
func ValidateHTML(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(data) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// LoadHTML parses HTML with automatic charset detection.
func LoadHTML(data []byte) (*goquery.Document, error) {
	if err := ValidateHTML(data); err != nil {
		return nil, err
	}

	contentType := "text/html; charset=" + DetectCharset(data)
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// HTMLTitle returns the document title, if any.
func HTMLTitle(doc *goquery.Document) string {
	return NormalizeWhitespace(doc.Find("title").First().Text())
}

// HTMLText returns the readable text of doc with one block per line.
// Scripts, styles and the head are removed from doc, so read the title
// first.
func HTMLText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, head").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return NormalizeLines(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	block := n.Type == html.ElementNode && blockElements[n.Data]
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

var stripPolicy = bluemonday.StrictPolicy()

// StripTags removes all markup from s, for input too broken to parse as a
// tree.
func StripTags(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n").Replace(s)
	return NormalizeLines(html.UnescapeString(stripPolicy.Sanitize(s)))
}
