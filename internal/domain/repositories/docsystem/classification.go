package docsystem

import (
	"context"

	"docusight/internal/domain/models/docsystem"
)

// ClassificationRepository defines data access operations for classifications
type ClassificationRepository interface {
	// Create inserts a classification. If the document already has one,
	// the stored row is loaded into c instead and created is false.
	Create(ctx context.Context, c *docsystem.Classification) (created bool, err error)

	// ListByFolders lists classifications (with their documents) for documents in the given folders
	ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]docsystem.Classification, error)
}
