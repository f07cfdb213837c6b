package docsystem

import "context"

// ContentConverter converts one file's bytes to plain text.
// Each converter handles a family of extensions (txt, docx, pdf, csv, html, rtf).
//
// Implementations should be stateless and thread-safe.
type ContentConverter interface {
	// Convert extracts plain text from input.
	// Returns an error if the content cannot be parsed.
	Convert(ctx context.Context, input []byte) (text string, err error)

	// SupportedExtensions returns file extensions this converter handles.
	// Extensions should include the leading dot (e.g., [".html", ".htm"]).
	SupportedExtensions() []string

	// Name returns a human-readable converter name for logging/debugging.
	Name() string
}
