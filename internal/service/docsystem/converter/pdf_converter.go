package converter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	docsysSvc "docusight/internal/domain/services/docsystem"
)

// pdfConverter extracts the text layer of each page in page order.
type pdfConverter struct{}

// NewPDFConverter creates a new PDF converter.
func NewPDFConverter() docsysSvc.ContentConverter {
	return &pdfConverter{}
}

// Convert concatenates page text. Pages whose text cannot be extracted are
// skipped; a document that cannot be opened at all is an error.
func (c *pdfConverter) Convert(ctx context.Context, input []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, ok := extractPage(reader, i)
		if !ok {
			continue
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}

func extractPage(reader *pdf.Reader, num int) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("skipping unreadable PDF page", "page", num, "panic", r)
			text, ok = "", false
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Debug("skipping unreadable PDF page", "page", num, "error", err)
		return "", false
	}
	return text, true
}

// SupportedExtensions returns PDF file extensions.
func (c *pdfConverter) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Name returns the converter name for logging.
func (c *pdfConverter) Name() string {
	return "pdf"
}
