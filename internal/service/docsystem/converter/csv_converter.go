package converter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	docsysSvc "docusight/internal/domain/services/docsystem"
)

// csvConverter flattens delimited records: fields rejoined with ",", one row per line.
type csvConverter struct{}

// NewCSVConverter creates a new CSV converter.
func NewCSVConverter() docsysSvc.ContentConverter {
	return &csvConverter{}
}

// Convert reads every record and rewrites it as a plain comma-joined line.
// Quoting is dropped; ragged rows are accepted.
func (c *csvConverter) Convert(ctx context.Context, input []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(input))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var lines []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read CSV record: %w", err)
		}
		lines = append(lines, strings.Join(record, ","))
	}

	return strings.Join(lines, "\n"), nil
}

// SupportedExtensions returns CSV file extensions.
func (c *csvConverter) SupportedExtensions() []string {
	return []string{".csv"}
}

// Name returns the converter name for logging.
func (c *csvConverter) Name() string {
	return "csv"
}
