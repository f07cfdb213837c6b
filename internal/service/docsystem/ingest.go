package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docusight/internal/config"
	"docusight/internal/domain"
	"docusight/internal/domain/repositories"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	docsysSvc "docusight/internal/domain/services/docsystem"
)

// BlobUploader sends staged files to remote storage and returns
// relative path → remote blob path
type BlobUploader interface {
	Upload(ctx context.Context, baseDir string, relPaths []string) (map[string]string, error)
}

// ingestService implements the IngestService interface
type ingestService struct {
	stager      *Stager
	normalizer  *Normalizer
	builder     *TreeBuilder
	uploader    BlobUploader
	folderRepo  docsysRepo.FolderRepository
	docRepo     docsysRepo.DocumentRepository
	treeService docsysSvc.TreeService
	txManager   repositories.TransactionManager
	logger      *slog.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	stager *Stager,
	normalizer *Normalizer,
	builder *TreeBuilder,
	uploader BlobUploader,
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
	treeService docsysSvc.TreeService,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) docsysSvc.IngestService {
	return &ingestService{
		stager:      stager,
		normalizer:  normalizer,
		builder:     builder,
		uploader:    uploader,
		folderRepo:  folderRepo,
		docRepo:     docRepo,
		treeService: treeService,
		txManager:   txManager,
		logger:      logger,
	}
}

// Ingest runs stage → normalize → persist tree → upload → record blob refs.
//
// The tree is committed before the upload starts and blob refs are written
// in a second transaction, so a failed upload leaves documents without a
// RemoteBlobRef. The staging directory is removed on every path.
func (s *ingestService) Ingest(ctx context.Context, req *docsysSvc.IngestRequest) (*docsysSvc.IngestResult, error) {
	if err := s.validateIngestRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	staged, err := s.stager.Stage(ctx, req.OwnerID, req.ArchiveName, req.Archive)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := staged.Cleanup(); err != nil {
			s.logger.Error("failed to clean staging dir", "dir", staged.Dir, "error", err)
		}
	}()

	existing, err := s.folderRepo.GetByPath(ctx, req.OwnerID, staged.RootName)
	switch {
	case err == nil:
		s.logger.Info("archive root already ingested",
			"owner_id", req.OwnerID,
			"root", staged.RootName,
			"folder_id", existing.ID,
		)
		return s.result(ctx, req.OwnerID, staged.RootName, false)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	set, err := s.normalizer.Normalize(ctx, staged.Dir, staged.Files)
	if err != nil {
		return nil, err
	}

	var built *BuiltTree
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		built, err = s.builder.Build(txCtx, req.OwnerID, staged.RootName, staged.Dirs, set, req.Recursive)
		return err
	})
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(built.Documents))
	for rel := range built.Documents {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	refs, err := s.uploader.Upload(ctx, staged.Dir, rels)
	if err != nil {
		s.logger.Error("upload failed after tree was committed",
			"owner_id", req.OwnerID,
			"root", staged.RootName,
			"documents", len(rels),
			"error", err,
		)
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for _, rel := range rels {
			ref, ok := refs[rel]
			if !ok {
				return &domain.TransferError{Op: "upload", Err: fmt.Errorf("no blob returned for %s", rel)}
			}
			doc := built.Documents[rel]
			textSize := set[rel].TextSize
			if err := s.docRepo.SetRemoteBlob(txCtx, doc.ID, req.OwnerID, ref, textSize); err != nil {
				return err
			}
			doc.RemoteBlobRef = &ref
			doc.NormalizedTextSize = &textSize
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("archive ingested",
		"owner_id", req.OwnerID,
		"archive", req.ArchiveName,
		"root", staged.RootName,
		"folders", len(built.Folders),
		"documents", len(built.Documents),
		"recursive", req.Recursive,
	)

	return s.result(ctx, req.OwnerID, staged.RootName, true)
}

func (s *ingestService) result(ctx context.Context, ownerID, rootPath string, created bool) (*docsysSvc.IngestResult, error) {
	tree, err := s.treeService.GetFolderTree(ctx, ownerID, rootPath)
	if err != nil {
		return nil, err
	}
	folders, documents := countTree(tree)
	return &docsysSvc.IngestResult{
		Tree:          tree,
		Created:       created,
		FolderCount:   folders,
		DocumentCount: documents,
	}, nil
}

func (s *ingestService) validateIngestRequest(req *docsysSvc.IngestRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.ArchiveName,
			validation.Required,
			validation.Length(1, config.MaxFolderNameLength),
			validation.By(func(value interface{}) error {
				name, _ := value.(string)
				if !strings.EqualFold(filepath.Ext(name), ".zip") {
					return errors.New("must be a .zip archive")
				}
				return nil
			}),
		),
		validation.Field(&req.Archive, validation.NotNil),
	)
}
