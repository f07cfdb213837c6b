package sanitizer

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer removes active content (scripts, styles, event handlers,
// embedded frames) from HTML before text extraction.
//
// Thread-safe for concurrent use.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer keeps block structure (p, div, li, table, headings) so
// line breaks survive extraction. script and style elements are dropped
// together with their content.
func NewHTMLSanitizer() *HTMLSanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("div", "span", "section", "article", "header", "footer", "main", "nav", "aside")
	return &HTMLSanitizer{policy: policy}
}

// Sanitize returns the sanitized HTML string.
func (s *HTMLSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
