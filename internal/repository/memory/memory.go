// Package memory keeps folders, documents and classifications in process
// memory. It mirrors the Postgres repositories' contracts (owner scoping,
// path uniqueness, one classification per document) and backs the service
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	"docusight/internal/domain/repositories"
)

// Store holds all rows. Repositories created from the same Store share data.
type Store struct {
	mu              sync.RWMutex
	folders         map[string]models.Folder
	documents       map[string]models.Document
	classifications map[string]models.Classification // keyed by document ID

	// FailNextDocumentCreate makes the next document insert fail
	FailNextDocumentCreate error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		folders:         make(map[string]models.Folder),
		documents:       make(map[string]models.Document),
		classifications: make(map[string]models.Classification),
	}
}

// Counts returns the number of stored folders, documents and classifications
func (s *Store) Counts() (folders, documents, classifications int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.folders), len(s.documents), len(s.classifications)
}

type snapshot struct {
	folders         map[string]models.Folder
	documents       map[string]models.Document
	classifications map[string]models.Classification
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		folders:         make(map[string]models.Folder, len(s.folders)),
		documents:       make(map[string]models.Document, len(s.documents)),
		classifications: make(map[string]models.Classification, len(s.classifications)),
	}
	for k, v := range s.folders {
		snap.folders[k] = v
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	for k, v := range s.classifications {
		snap.classifications[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = snap.folders
	s.documents = snap.documents
	s.classifications = snap.classifications
}

// TransactionManager rolls the store back when fn fails.
// Transactions are not isolated from each other.
type TransactionManager struct {
	store *Store
	mu    sync.Mutex
}

// NewTransactionManager creates a transaction manager over store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

type txKey struct{}

// ExecTx runs fn and restores the pre-call state if it returns an error.
// Nested calls join the outer transaction.
func (m *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// FolderRepository is an in-memory docsystem.FolderRepository
type FolderRepository struct{ store *Store }

// NewFolderRepository creates a folder repository over store
func NewFolderRepository(store *Store) *FolderRepository {
	return &FolderRepository{store: store}
}

// Create inserts a folder
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, f := range r.store.folders {
		if f.OwnerID == folder.OwnerID && f.Path == folder.Path {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder '%s' already exists", folder.Path),
				ResourceType: "folder",
				ResourceID:   f.ID,
			}
		}
	}
	if folder.ParentID != nil {
		if _, ok := r.store.folders[*folder.ParentID]; !ok {
			return fmt.Errorf("parent folder %s: %w", *folder.ParentID, domain.ErrNotFound)
		}
	}

	folder.ID = uuid.NewString()
	folder.CreatedAt = time.Now().UTC()
	r.store.folders[folder.ID] = *folder
	return nil
}

// GetByPath walks the path one segment at a time
func (r *FolderRepository) GetByPath(ctx context.Context, ownerID, path string) (*models.Folder, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return nil, fmt.Errorf("invalid path: %w", domain.ErrValidation)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var current *models.Folder
	for _, segment := range segments {
		var next *models.Folder
		for _, f := range r.store.folders {
			if f.OwnerID != ownerID || f.Name != segment {
				continue
			}
			if (current == nil && f.ParentID == nil) || (current != nil && f.ParentID != nil && *f.ParentID == current.ID) {
				f := f
				next = &f
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("folder at path '%s': %w", path, domain.ErrNotFound)
		}
		current = next
	}
	return current, nil
}

// ListSubtree returns the folder and its descendants ordered by depth, then path
func (r *FolderRepository) ListSubtree(ctx context.Context, folderID, ownerID string) ([]models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	root, ok := r.store.folders[folderID]
	if !ok || root.OwnerID != ownerID {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}

	depth := map[string]int{root.ID: 0}
	result := []models.Folder{root}
	for i := 0; i < len(result); i++ {
		parent := result[i]
		for _, f := range r.store.folders {
			if f.OwnerID == ownerID && f.ParentID != nil && *f.ParentID == parent.ID {
				depth[f.ID] = depth[parent.ID] + 1
				result = append(result, f)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if depth[result[i].ID] != depth[result[j].ID] {
			return depth[result[i].ID] < depth[result[j].ID]
		}
		return result[i].Path < result[j].Path
	})
	return result, nil
}

// DocumentRepository is an in-memory docsystem.DocumentRepository
type DocumentRepository struct{ store *Store }

// NewDocumentRepository creates a document repository over store
func NewDocumentRepository(store *Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// Create inserts a document
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.FailNextDocumentCreate; err != nil {
		r.store.FailNextDocumentCreate = nil
		return err
	}
	if _, ok := r.store.folders[doc.FolderID]; !ok {
		return fmt.Errorf("folder %s: %w", doc.FolderID, domain.ErrNotFound)
	}

	doc.ID = uuid.NewString()
	doc.InsertedAt = time.Now().UTC()
	r.store.documents[doc.ID] = *doc
	return nil
}

// SetRemoteBlob records the blob address and normalized text size
func (r *DocumentRepository) SetRemoteBlob(ctx context.Context, id, ownerID, blobRef string, textSize int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.store.documents[id]
	if !ok || d.OwnerID != ownerID {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	d.RemoteBlobRef = &blobRef
	d.NormalizedTextSize = &textSize
	r.store.documents[id] = d
	return nil
}

// ListByFolders lists documents in the given folders ordered by relative path
func (r *DocumentRepository) ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Document, error) {
	return r.list(folderIDs, ownerID, false), nil
}

// ListUnclassifiedByFolders lists documents without a classification
func (r *DocumentRepository) ListUnclassifiedByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Document, error) {
	return r.list(folderIDs, ownerID, true), nil
}

func (r *DocumentRepository) list(folderIDs []string, ownerID string, unclassifiedOnly bool) []models.Document {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}

	var docs []models.Document
	for _, d := range r.store.documents {
		if d.OwnerID != ownerID || !in[d.FolderID] {
			continue
		}
		if _, classified := r.store.classifications[d.ID]; unclassifiedOnly && classified {
			continue
		}
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].RelativePath < docs[j].RelativePath })
	return docs
}

// ClassificationRepository is an in-memory docsystem.ClassificationRepository
type ClassificationRepository struct{ store *Store }

// NewClassificationRepository creates a classification repository over store
func NewClassificationRepository(store *Store) *ClassificationRepository {
	return &ClassificationRepository{store: store}
}

// Create inserts c unless the document already has a classification, in
// which case c is overwritten with the stored row and created is false
func (r *ClassificationRepository) Create(ctx context.Context, c *models.Classification) (bool, error) {
	if !c.Label.Valid() {
		return false, fmt.Errorf("%w: label %q is not a sentiment label", domain.ErrValidation, c.Label)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.documents[c.DocumentID]; !ok {
		return false, fmt.Errorf("document %s: %w", c.DocumentID, domain.ErrNotFound)
	}
	if existing, ok := r.store.classifications[c.DocumentID]; ok {
		*c = existing
		return false, nil
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	r.store.classifications[c.DocumentID] = *c
	return true, nil
}

// ListByFolders lists classifications with their documents, ordered by document path
func (r *ClassificationRepository) ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Classification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}

	var result []models.Classification
	for docID, c := range r.store.classifications {
		d, ok := r.store.documents[docID]
		if !ok || d.OwnerID != ownerID || !in[d.FolderID] {
			continue
		}
		c.Document = &d
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Document.RelativePath < result[j].Document.RelativePath
	})
	return result, nil
}
