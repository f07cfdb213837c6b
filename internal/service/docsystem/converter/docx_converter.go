package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	docsysSvc "docusight/internal/domain/services/docsystem"
)

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// defaultMaxDocumentXMLBytes caps the decompressed document body when no
// limit is configured
const defaultMaxDocumentXMLBytes = 256 << 20

// ErrDocumentTooLarge is returned when word/document.xml decompresses past the limit
var ErrDocumentTooLarge = errors.New("DOCX document body exceeds size limit")

// docxConverter extracts paragraph text from Office Open XML documents.
type docxConverter struct {
	maxXMLBytes int64
}

// NewDocxConverter creates a new DOCX converter. maxXMLBytes bounds the
// decompressed size of word/document.xml; zero or less selects the default.
func NewDocxConverter(maxXMLBytes int64) docsysSvc.ContentConverter {
	if maxXMLBytes <= 0 {
		maxXMLBytes = defaultMaxDocumentXMLBytes
	}
	return &docxConverter{maxXMLBytes: maxXMLBytes}
}

// Convert reads word/document.xml and joins paragraphs with newlines.
func (c *docxConverter) Convert(ctx context.Context, input []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return "", fmt.Errorf("open DOCX container: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("DOCX has no word/document.xml")
	}
	if body.UncompressedSize64 > uint64(c.maxXMLBytes) {
		return "", fmt.Errorf("document.xml declares %d bytes, limit is %d: %w", body.UncompressedSize64, c.maxXMLBytes, ErrDocumentTooLarge)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	// the header size is not trusted; the stream itself is capped too
	paragraphs, err := docxParagraphs(&cappedReader{r: rc, remaining: c.maxXMLBytes})
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}

// cappedReader fails with ErrDocumentTooLarge once more than remaining bytes are read
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrDocumentTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrDocumentTooLarge
	}
	return n, err
}

// docxParagraphs streams the document body collecting w:t runs per w:p.
// Paragraphs nested in text boxes are emitted on their own, before the
// paragraph that contains them.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var paragraphs []string
	var open []*strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		var current *strings.Builder
		if len(open) > 0 {
			current = open[len(open)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if current != nil {
					current.WriteString("\t")
				}
			case "br", "cr":
				if current != nil {
					current.WriteString("\n")
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if current != nil {
					paragraphs = append(paragraphs, current.String())
					open = open[:len(open)-1]
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && current != nil {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

// SupportedExtensions returns DOCX file extensions.
func (c *docxConverter) SupportedExtensions() []string {
	return []string{".docx"}
}

// Name returns the converter name for logging.
func (c *docxConverter) Name() string {
	return "docx"
}
