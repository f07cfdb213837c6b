package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
)

// BuiltTree is the result of persisting one staged directory tree
type BuiltTree struct {
	Root    *models.Folder
	Folders []*models.Folder
	// Documents maps normalized text path (relative to the staging dir) to
	// the persisted document.
	Documents map[string]*models.Document
}

// TreeBuilder mirrors a staged directory tree into folder and document rows.
// Parents are always inserted before their children.
type TreeBuilder struct {
	folderRepo docsysRepo.FolderRepository
	docRepo    docsysRepo.DocumentRepository
	maxDepth   int
	logger     *slog.Logger
}

// NewTreeBuilder creates a tree builder; maxDepth <= 0 means unlimited
func NewTreeBuilder(
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
	maxDepth int,
	logger *slog.Logger,
) *TreeBuilder {
	return &TreeBuilder{
		folderRepo: folderRepo,
		docRepo:    docRepo,
		maxDepth:   maxDepth,
		logger:     logger,
	}
}

// treeLayout indexes the staged directories and normalized files by parent
type treeLayout struct {
	subdirs map[string][]string
	files   map[string][]string
	set     NormalizedSet
}

func newTreeLayout(dirs []string, set NormalizedSet) *treeLayout {
	l := &treeLayout{
		subdirs: make(map[string][]string),
		files:   make(map[string][]string),
		set:     set,
	}
	for _, d := range dirs {
		parent := path.Dir(d)
		if parent != "." {
			l.subdirs[parent] = append(l.subdirs[parent], d)
		}
	}
	for rel := range set {
		dir := path.Dir(rel)
		l.files[dir] = append(l.files[dir], rel)
	}
	for _, children := range l.subdirs {
		sort.Strings(children)
	}
	for _, children := range l.files {
		sort.Strings(children)
	}
	return l
}

// Build creates the folder for root, a document for every normalized file
// directly inside it and, when recursive, the same for every subdirectory.
// Call it inside a transaction: a failure leaves partial rows otherwise.
func (b *TreeBuilder) Build(ctx context.Context, ownerID, root string, dirs []string, set NormalizedSet, recursive bool) (*BuiltTree, error) {
	root = strings.Trim(root, "/")
	if root == "" {
		return nil, &domain.ValidationError{Message: "root folder path is required"}
	}

	tree := &BuiltTree{Documents: make(map[string]*models.Document)}
	layout := newTreeLayout(dirs, set)

	rootFolder, err := b.buildFolder(ctx, ownerID, root, nil, layout, recursive, 0, tree)
	if err != nil {
		return nil, err
	}
	tree.Root = rootFolder

	b.logger.Info("folder tree persisted",
		"owner_id", ownerID,
		"root", root,
		"folders", len(tree.Folders),
		"documents", len(tree.Documents),
	)
	return tree, nil
}

func (b *TreeBuilder) buildFolder(
	ctx context.Context,
	ownerID string,
	dir string,
	parentID *string,
	layout *treeLayout,
	recursive bool,
	depth int,
	tree *BuiltTree,
) (*models.Folder, error) {
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("folder nesting exceeds %d levels at %s", b.maxDepth, dir),
		}
	}

	folder := &models.Folder{
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     path.Base(dir),
		Path:     dir,
	}
	if err := b.folderRepo.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder %s: %w", dir, err)
	}
	tree.Folders = append(tree.Folders, folder)

	for _, rel := range layout.files[dir] {
		meta := layout.set[rel]
		doc := &models.Document{
			FolderID:     folder.ID,
			OwnerID:      ownerID,
			Filename:     meta.Filename,
			RelativePath: meta.RelativePath,
			Size:         meta.Size,
			CreatedAt:    meta.CreatedAt,
			ModifiedAt:   meta.ModifiedAt,
		}
		if err := b.docRepo.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document %s: %w", meta.RelativePath, err)
		}
		tree.Documents[rel] = doc
	}

	if !recursive {
		return folder, nil
	}

	for _, sub := range layout.subdirs[dir] {
		if _, err := b.buildFolder(ctx, ownerID, sub, &folder.ID, layout, recursive, depth+1, tree); err != nil {
			return nil, err
		}
	}
	return folder, nil
}
