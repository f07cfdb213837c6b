package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/service/docsystem/converter/sanitizer"
)

// blockElements end a line in the extracted text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "pre": true, "blockquote": true, "hr": true,
	"section": true, "article": true, "header": true, "footer": true,
	"main": true, "nav": true, "aside": true, "dt": true, "dd": true,
}

// cellElements are separated by a tab within a row
var cellElements = map[string]bool{"td": true, "th": true}

// htmlConverter extracts visible text from HTML.
// Sanitizing first drops script and style content, which is never visible.
type htmlConverter struct {
	sanitizer *sanitizer.HTMLSanitizer
}

// NewHTMLConverter creates a new HTML to text converter.
func NewHTMLConverter() docsysSvc.ContentConverter {
	return &htmlConverter{
		sanitizer: sanitizer.NewHTMLSanitizer(),
	}
}

// Convert sanitizes the markup, then walks the DOM collecting text nodes.
func (c *htmlConverter) Convert(ctx context.Context, input []byte) (string, error) {
	sanitized := c.sanitizer.Sanitize(string(input))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var sb strings.Builder
	collectText(doc.Selection, &sb)

	return tidyLines(sb.String()), nil
}

func collectText(sel *goquery.Selection, sb *strings.Builder) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			sb.WriteString(node.Text())
		case name == "#comment":
		case cellElements[name]:
			collectText(node, sb)
			sb.WriteString("\t")
		default:
			collectText(node, sb)
			if blockElements[name] {
				sb.WriteString("\n")
			}
		}
	})
}

// tidyLines trims each line and collapses runs of blank lines
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
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

// SupportedExtensions returns HTML file extensions.
func (c *htmlConverter) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// Name returns the converter name for logging.
func (c *htmlConverter) Name() string {
	return "html"
}
