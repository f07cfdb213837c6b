// Package classification runs batched sentiment classification over the
// documents of a folder.
package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docusight/internal/capabilities"
	"docusight/internal/classifier"
	"docusight/internal/config"
	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	"docusight/internal/domain/repositories"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/worker"
)

// Downloader fetches blobs into a local directory, returning one local path
// per blob in order
type Downloader interface {
	Download(ctx context.Context, blobPaths []string, destDir string) ([]string, error)
}

// Workspaces hands out private scratch directories
type Workspaces interface {
	NewWorkspace(ownerID string) (string, error)
}

// Config tunes batching
type Config struct {
	BatchSize int
}

// Service implements docsysSvc.ClassificationService
type Service struct {
	folderRepo docsysRepo.FolderRepository
	docRepo    docsysRepo.DocumentRepository
	classRepo  docsysRepo.ClassificationRepository
	txManager  repositories.TransactionManager
	downloader Downloader
	workspaces Workspaces
	engine     classifier.Engine
	profile    *capabilities.ModelProfile
	pool       *worker.Pool
	batchSize  int
	logger     *slog.Logger
}

// NewService creates a classification service
func NewService(
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
	classRepo docsysRepo.ClassificationRepository,
	txManager repositories.TransactionManager,
	downloader Downloader,
	workspaces Workspaces,
	engine classifier.Engine,
	profile *capabilities.ModelProfile,
	pool *worker.Pool,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if profile == nil {
		profile = capabilities.DefaultProfile(engine.Name())
	}
	return &Service{
		folderRepo: folderRepo,
		docRepo:    docRepo,
		classRepo:  classRepo,
		txManager:  txManager,
		downloader: downloader,
		workspaces: workspaces,
		engine:     engine,
		profile:    profile,
		pool:       pool,
		batchSize:  profile.BatchSize(cfg.BatchSize),
		logger:     logger,
	}
}

var _ docsysSvc.ClassificationService = (*Service)(nil)

// ClassifyFolder classifies the folder's unclassified documents and returns
// them together with the folder's existing classifications
func (s *Service) ClassifyFolder(ctx context.Context, req *docsysSvc.ClassifyFolderRequest) (*docsysSvc.ClassifyFolderResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	folder, err := s.folderRepo.GetByPath(ctx, req.OwnerID, req.FolderPath)
	if err != nil {
		return nil, err
	}

	folderIDs := []string{folder.ID}
	if req.Recursive {
		subtree, err := s.folderRepo.ListSubtree(ctx, folder.ID, req.OwnerID)
		if err != nil {
			return nil, err
		}
		folderIDs = folderIDs[:0]
		for _, f := range subtree {
			folderIDs = append(folderIDs, f.ID)
		}
	}

	unclassified, err := s.docRepo.ListUnclassifiedByFolders(ctx, folderIDs, req.OwnerID)
	if err != nil {
		return nil, err
	}
	existing, err := s.classRepo.ListByFolders(ctx, folderIDs, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if len(unclassified) == 0 && len(existing) == 0 {
		return nil, &domain.ValidationError{Message: "no documents in folder to classify"}
	}

	// a concurrent run may have committed between the two reads
	classified := make(map[string]bool, len(existing))
	for _, c := range existing {
		classified[c.DocumentID] = true
	}

	// documents whose upload never completed have nothing to download
	pending := make([]models.Document, 0, len(unclassified))
	skipped := 0
	for _, doc := range unclassified {
		if classified[doc.ID] {
			continue
		}
		if doc.RemoteBlobRef == nil || *doc.RemoteBlobRef == "" {
			s.logger.Warn("skipping document without remote blob",
				"document_id", doc.ID,
				"path", doc.RelativePath,
			)
			skipped++
			continue
		}
		pending = append(pending, doc)
	}

	created, fresh, err := s.classifyDocuments(ctx, req.OwnerID, pending)
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder classified",
		"owner_id", req.OwnerID,
		"folder_path", folder.Path,
		"recursive", req.Recursive,
		"created", created,
		"existing", len(existing),
		"skipped", skipped,
	)

	return &docsysSvc.ClassifyFolderResult{
		FolderPath:          folder.Path,
		Created:             created,
		ClassifiedDocuments: append(fresh, existing...),
	}, nil
}

// classifyDocuments downloads, scores and persists docs batch by batch.
// Results are matched to documents by position.
func (s *Service) classifyDocuments(ctx context.Context, ownerID string, docs []models.Document) (int, []models.Classification, error) {
	if len(docs) == 0 {
		return 0, []models.Classification{}, nil
	}

	workspace, err := s.workspaces.NewWorkspace(ownerID)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			s.logger.Error("failed to remove classification workspace", "dir", workspace, "error", err)
		}
	}()

	refs := make([]string, len(docs))
	for i, doc := range docs {
		refs[i] = *doc.RemoteBlobRef
	}
	localPaths, err := s.downloader.Download(ctx, refs, workspace)
	if err != nil {
		return 0, nil, err
	}
	if len(localPaths) != len(docs) {
		return 0, nil, &domain.TransferError{
			Op:  "download",
			Err: fmt.Errorf("requested %d blobs, got %d files", len(docs), len(localPaths)),
		}
	}

	var (
		created int
		results = make([]models.Classification, 0, len(docs))
	)
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))

		batch, err := s.classifyBatch(ctx, docs[start:end], localPaths[start:end])
		if err != nil {
			return 0, nil, err
		}

		n, err := s.persistBatch(ctx, ownerID, docs[start:end], batch)
		if err != nil {
			return 0, nil, err
		}
		created += n
		results = append(results, batch...)
	}
	return created, results, nil
}

func (s *Service) classifyBatch(ctx context.Context, docs []models.Document, localPaths []string) ([]models.Classification, error) {
	texts := make([]string, len(localPaths))
	for i, p := range localPaths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, &domain.IOError{Op: "read", Path: p, Err: err}
		}
		texts[i] = classifier.Truncate(strings.ToValidUTF8(string(content), "\uFFFD"), s.profile.MaxInputChars)
	}

	raw, err := worker.Submit(ctx, s.pool, "classify batch", func(ctx context.Context) ([]classifier.RawResult, error) {
		return s.engine.Classify(ctx, texts, len(texts))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &domain.ClassificationError{Err: fmt.Errorf("%s: %w", s.engine.Name(), err)}
	}
	if len(raw) != len(texts) {
		return nil, &domain.ClassificationError{
			Err: fmt.Errorf("engine returned %d results for %d documents", len(raw), len(texts)),
		}
	}

	batch := make([]models.Classification, len(raw))
	for i, r := range raw {
		label, err := classifier.NormalizeLabel(r.Label)
		if err != nil {
			return nil, &domain.ClassificationError{Err: err}
		}
		batch[i] = models.Classification{
			DocumentID: docs[i].ID,
			OwnerID:    docs[i].OwnerID,
			Label:      label,
			Score:      r.Score,
		}
	}
	return batch, nil
}

// persistBatch stores one batch in a single transaction. A document that
// gained a classification concurrently keeps the stored row.
func (s *Service) persistBatch(ctx context.Context, ownerID string, docs []models.Document, batch []models.Classification) (int, error) {
	created := 0
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		created = 0
		for i := range batch {
			batch[i].OwnerID = ownerID
			ok, err := s.classRepo.Create(txCtx, &batch[i])
			if err != nil {
				return fmt.Errorf("save classification for %s: %w", docs[i].ID, err)
			}
			if ok {
				created++
			}
			doc := docs[i]
			batch[i].Document = &doc
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *Service) validateRequest(req *docsysSvc.ClassifyFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.FolderPath,
			validation.Required,
			validation.Length(1, config.MaxFolderPathLength),
		),
	)
}
