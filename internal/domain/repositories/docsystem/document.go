package docsystem

import (
	"context"

	"docusight/internal/domain/models/docsystem"
)

// DocumentRepository defines data access operations for documents
type DocumentRepository interface {
	// Create inserts a document and fills in ID and InsertedAt
	Create(ctx context.Context, doc *docsystem.Document) error

	// SetRemoteBlob records the committed blob address and normalized text size
	SetRemoteBlob(ctx context.Context, id, ownerID, blobRef string, textSize int64) error

	// ListByFolders lists every document in the given folders
	ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]docsystem.Document, error)

	// ListUnclassifiedByFolders lists documents in the given folders that have no classification
	ListUnclassifiedByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]docsystem.Document, error)
}
