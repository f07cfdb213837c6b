package converter

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"docusight/internal/domain"
	docsysSvc "docusight/internal/domain/services/docsystem"
)

// ConverterRegistry manages content converters and routes files by extension.
//
// Thread-safe for concurrent access.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[string]docsysSvc.ContentConverter // key: file extension (e.g., ".html")
}

// NewConverterRegistry creates a registry with the standard converters pre-registered.
// maxExpandedBytes bounds what container formats (DOCX) may decompress to;
// zero or less selects each converter's default.
func NewConverterRegistry(maxExpandedBytes int64) *ConverterRegistry {
	registry := &ConverterRegistry{
		converters: make(map[string]docsysSvc.ContentConverter),
	}

	registry.Register(NewTextConverter())
	registry.Register(NewDocxConverter(maxExpandedBytes))
	registry.Register(NewPDFConverter())
	registry.Register(NewCSVConverter())
	registry.Register(NewHTMLConverter())
	registry.Register(NewRTFConverter())

	return registry
}

// Register adds a converter and associates it with its supported extensions.
// Extensions are normalized to lowercase with a leading dot.
func (r *ConverterRegistry) Register(converter docsysSvc.ContentConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range converter.SupportedExtensions() {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.converters[ext] = converter
	}
}

// GetConverter retrieves a converter for the given file extension.
// Returns nil if no converter is registered for this extension.
//
// Extension lookup is case-insensitive.
func (r *ConverterRegistry) GetConverter(fileExt string) docsysSvc.ContentConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.converters[strings.ToLower(fileExt)]
}

// Convert selects a converter by the file's extension and runs it.
//
// Returns *domain.UnsupportedFormatError when no converter is registered.
func (r *ConverterRegistry) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	ext := filepath.Ext(filename)
	converter := r.GetConverter(ext)

	if converter == nil {
		return "", &domain.UnsupportedFormatError{Ext: strings.ToLower(ext)}
	}

	return converter.Convert(ctx, content)
}

// SupportedExtensions returns the registered extensions, sorted
func (r *ConverterRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.converters))
	for ext := range r.converters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
