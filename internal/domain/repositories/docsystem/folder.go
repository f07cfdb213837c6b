package docsystem

import (
	"context"

	"docusight/internal/domain/models/docsystem"
)

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create inserts a folder and fills in ID and CreatedAt.
	// Returns a ConflictError if the owner already has a folder at that path.
	Create(ctx context.Context, folder *docsystem.Folder) error

	// GetByPath resolves a slash-separated path one segment at a time.
	// Any missing segment yields domain.ErrNotFound.
	GetByPath(ctx context.Context, ownerID, path string) (*docsystem.Folder, error)

	// ListSubtree returns the folder and all of its descendants (flat list, root first)
	ListSubtree(ctx context.Context, folderID, ownerID string) ([]docsystem.Folder, error)
}
