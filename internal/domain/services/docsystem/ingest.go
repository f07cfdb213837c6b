package docsystem

import (
	"context"
	"io"

	"docusight/internal/domain/models/docsystem"
)

// IngestService turns an uploaded archive into a persisted folder tree
type IngestService interface {
	// Ingest stages, normalizes and persists the archive, then uploads the
	// normalized text. If the archive's root folder already exists for the
	// owner, the existing tree is returned and nothing is written.
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
}

// IngestRequest represents one archive upload
type IngestRequest struct {
	OwnerID     string    `json:"-"`
	ArchiveName string    `json:"archive_name"`
	Archive     io.Reader `json:"-"`
	Recursive   bool      `json:"recursive"`
}

// IngestResult is the tree rooted at the archive's top-level folder
type IngestResult struct {
	Tree          *docsystem.FolderTree `json:"tree"`
	Created       bool                  `json:"created"`
	FolderCount   int                   `json:"folder_count"`
	DocumentCount int                   `json:"document_count"`
}
