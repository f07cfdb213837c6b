package converter

import (
	"context"

	docsysSvc "docusight/internal/domain/services/docsystem"
)

// textConverter is a passthrough for plain text files.
// Encoding repair happens when the normalizer writes the result.
type textConverter struct{}

// NewTextConverter creates a new text converter.
func NewTextConverter() docsysSvc.ContentConverter {
	return &textConverter{}
}

// Convert returns the input as-is.
func (c *textConverter) Convert(ctx context.Context, input []byte) (string, error) {
	return string(input), nil
}

// SupportedExtensions returns text file extensions.
func (c *textConverter) SupportedExtensions() []string {
	return []string{".txt", ".text"}
}

// Name returns the converter name for logging.
func (c *textConverter) Name() string {
	return "plaintext"
}
