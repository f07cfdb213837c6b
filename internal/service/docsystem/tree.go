package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	docsysSvc "docusight/internal/domain/services/docsystem"
)

// treeService implements the TreeService interface
type treeService struct {
	folderRepo   docsysRepo.FolderRepository
	documentRepo docsysRepo.DocumentRepository
	logger       *slog.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(
	folderRepo docsysRepo.FolderRepository,
	documentRepo docsysRepo.DocumentRepository,
	logger *slog.Logger,
) docsysSvc.TreeService {
	return &treeService{
		folderRepo:   folderRepo,
		documentRepo: documentRepo,
		logger:       logger,
	}
}

// GetFolderTree builds the nested folder/document tree rooted at path
func (s *treeService) GetFolderTree(ctx context.Context, ownerID, path string) (*models.FolderTree, error) {
	root, err := s.folderRepo.GetByPath(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}

	folders, err := s.folderRepo.ListSubtree(ctx, root.ID, ownerID)
	if err != nil {
		return nil, err
	}

	folderIDs := make([]string, 0, len(folders))
	for _, f := range folders {
		folderIDs = append(folderIDs, f.ID)
	}
	documents, err := s.documentRepo.ListByFolders(ctx, folderIDs, ownerID)
	if err != nil {
		return nil, err
	}

	// First pass: create all folder nodes
	nodes := make(map[string]*models.FolderTree, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &models.FolderTree{
			ID:         f.ID,
			Path:       f.Path,
			Name:       f.Name,
			ParentID:   f.ParentID,
			Documents:  []models.Document{},
			Subfolders: []*models.FolderTree{},
		}
	}

	// Second pass: nest folders. Subtree rows come back parents first, so
	// children land in path order.
	for _, f := range folders {
		if f.ID == root.ID || f.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*f.ParentID]; ok {
			parent.Subfolders = append(parent.Subfolders, nodes[f.ID])
		}
	}

	// Third pass: attach documents
	for _, doc := range documents {
		if parent, ok := nodes[doc.FolderID]; ok {
			parent.Documents = append(parent.Documents, doc)
		}
	}

	tree, ok := nodes[root.ID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", root.ID, domain.ErrNotFound)
	}

	s.logger.Debug("folder tree built",
		"owner_id", ownerID,
		"path", root.Path,
		"folder_count", len(folders),
		"document_count", len(documents),
	)
	return tree, nil
}

// countTree returns the number of folders and documents in tree
func countTree(tree *models.FolderTree) (folders, documents int) {
	if tree == nil {
		return 0, 0
	}
	folders, documents = 1, len(tree.Documents)
	for _, sub := range tree.Subfolders {
		f, d := countTree(sub)
		folders += f
		documents += d
	}
	return folders, documents
}
