package docsystem

import (
	"context"

	"docusight/internal/domain/models/docsystem"
)

// TreeService defines operations for reading folder trees
type TreeService interface {
	// GetFolderTree returns the folder at path with all nested folders and documents
	GetFolderTree(ctx context.Context, ownerID, path string) (*docsystem.FolderTree, error)
}
