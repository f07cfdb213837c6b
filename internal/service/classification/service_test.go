package classification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docusight/internal/blobstore"
	"docusight/internal/capabilities"
	"docusight/internal/classifier"
	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysSvc "docusight/internal/domain/services/docsystem"
	"docusight/internal/repository/memory"
	"docusight/internal/service/transfer"
	"docusight/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// starEngine answers like a 1-5 star review model and records its batches
type starEngine struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	drop    bool
	label   string
}

func (e *starEngine) Name() string { return "stars" }

func (e *starEngine) Classify(ctx context.Context, texts []string, batchSize int) ([]classifier.RawResult, error) {
	e.mu.Lock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	results := make([]classifier.RawResult, 0, len(texts))
	for _, text := range texts {
		label := "3 stars"
		switch {
		case e.label != "":
			label = e.label
		case strings.Contains(text, "love"):
			label = "5 stars"
		case strings.Contains(text, "hate"):
			label = "1 star"
		}
		results = append(results, classifier.RawResult{Label: label, Score: 0.75})
	}
	if e.drop {
		results = results[:len(results)-1]
	}
	return results, nil
}

type workspaceDir struct {
	root string
}

func (w workspaceDir) NewWorkspace(ownerID string) (string, error) {
	return os.MkdirTemp(w.root, ownerID+"-*")
}

// hookedDocuments runs afterUnclassified once the unclassified documents have
// been read, standing in for another run committing in between
type hookedDocuments struct {
	*memory.DocumentRepository
	afterUnclassified func(docs []models.Document)
}

func (h *hookedDocuments) ListUnclassifiedByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Document, error) {
	docs, err := h.DocumentRepository.ListUnclassifiedByFolders(ctx, folderIDs, ownerID)
	if err == nil && h.afterUnclassified != nil {
		h.afterUnclassified(docs)
	}
	return docs, err
}

type fixture struct {
	store      *memory.Store
	service    *Service
	engine     *starEngine
	docs       *hookedDocuments
	workspaces string
	folders    map[string]*models.Folder
}

// newFixture stores folder "sample" (and "sample/inner") with one uploaded
// document per text
func newFixture(t *testing.T, batchSize int, texts map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()
	pool := worker.NewPool(4, logger)
	store := memory.NewStore()

	blobs, err := blobstore.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)
	xfer := transfer.NewService(blobs, pool, transfer.Config{UploadRoot: "uploads"}, logger)

	folderRepo := memory.NewFolderRepository(store)
	docRepo := memory.NewDocumentRepository(store)

	f := &fixture{store: store, engine: &starEngine{}, docs: &hookedDocuments{DocumentRepository: docRepo}, workspaces: t.TempDir(), folders: map[string]*models.Folder{}}

	root := &models.Folder{OwnerID: "user-1", Name: "sample", Path: "sample"}
	require.NoError(t, folderRepo.Create(ctx, root))
	inner := &models.Folder{OwnerID: "user-1", ParentID: &root.ID, Name: "inner", Path: "sample/inner"}
	require.NoError(t, folderRepo.Create(ctx, inner))
	f.folders["sample"] = root
	f.folders["sample/inner"] = inner

	local := t.TempDir()
	for rel, text := range texts {
		p := filepath.Join(local, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))

		refs, err := xfer.Upload(ctx, local, []string{rel})
		require.NoError(t, err)

		folder := root
		if strings.HasPrefix(rel, "sample/inner/") {
			folder = inner
		}
		doc := &models.Document{
			FolderID:     folder.ID,
			OwnerID:      "user-1",
			Filename:     filepath.Base(rel),
			RelativePath: rel,
			Size:         int64(len(text)),
		}
		require.NoError(t, docRepo.Create(ctx, doc))
		require.NoError(t, docRepo.SetRemoteBlob(ctx, doc.ID, "user-1", refs[rel], int64(len(text))))
	}

	f.service = NewService(
		folderRepo,
		f.docs,
		memory.NewClassificationRepository(store),
		memory.NewTransactionManager(store),
		xfer,
		workspaceDir{root: f.workspaces},
		f.engine,
		&capabilities.ModelProfile{ID: "stars", MaxBatchSize: 100, MaxInputChars: 50},
		pool,
		Config{BatchSize: batchSize},
		logger,
	)
	return f
}

func labelsByPath(result *docsysSvc.ClassifyFolderResult) map[string]models.SentimentLabel {
	labels := make(map[string]models.SentimentLabel)
	for _, c := range result.ClassifiedDocuments {
		labels[c.Document.RelativePath] = c.Label
	}
	return labels
}

func TestService_ClassifyFolder_MapsResultsByPosition(t *testing.T) {
	f := newFixture(t, 2, map[string]string{
		"sample/a.txt": "I love this",
		"sample/b.txt": "I hate this",
	})

	result, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
		OwnerID: "user-1", FolderPath: "sample", Recursive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "sample", result.FolderPath)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.ClassifiedDocuments, 2)
	assert.Equal(t, models.SentimentPositive, result.ClassifiedDocuments[0].Label)
	assert.Equal(t, "sample/a.txt", result.ClassifiedDocuments[0].Document.RelativePath)
	assert.Equal(t, models.SentimentNegative, result.ClassifiedDocuments[1].Label)
	assert.Equal(t, "sample/b.txt", result.ClassifiedDocuments[1].Document.RelativePath)
	assert.InDelta(t, 0.75, result.ClassifiedDocuments[0].Score, 1e-9)

	assert.Equal(t, [][]string{{"I love this", "I hate this"}}, f.engine.batches)
	assert.Empty(t, dirEntries(t, f.workspaces), "workspace not removed")
}

func TestService_ClassifyFolder_ConcurrentRunCommitsFirst(t *testing.T) {
	f := newFixture(t, 10, map[string]string{
		"sample/a.txt": "I love this",
		"sample/b.txt": "I hate this",
	})
	ctx := context.Background()
	classRepo := memory.NewClassificationRepository(f.store)

	f.docs.afterUnclassified = func(docs []models.Document) {
		for _, doc := range docs {
			if doc.RelativePath != "sample/a.txt" {
				continue
			}
			_, err := classRepo.Create(ctx, &models.Classification{
				DocumentID: doc.ID, OwnerID: "user-1", Label: models.SentimentNeutral, Score: 0.5,
			})
			require.NoError(t, err)
		}
	}

	result, err := f.service.ClassifyFolder(ctx, &docsysSvc.ClassifyFolderRequest{
		OwnerID: "user-1", FolderPath: "sample", Recursive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.ClassifiedDocuments, 2, "each document listed once")
	assert.Equal(t, map[string]models.SentimentLabel{
		"sample/a.txt": models.SentimentNeutral,
		"sample/b.txt": models.SentimentNegative,
	}, labelsByPath(result))
	assert.Equal(t, [][]string{{"I hate this"}}, f.engine.batches)
}

func TestService_ClassifyFolder_SecondRunCreatesNothing(t *testing.T) {
	texts := map[string]string{}
	for _, name := range []string{"1", "2", "3", "4", "5"} {
		texts["sample/"+name+".txt"] = "review " + name
	}
	f := newFixture(t, 2, texts)
	ctx := context.Background()
	req := &docsysSvc.ClassifyFolderRequest{OwnerID: "user-1", FolderPath: "sample", Recursive: true}

	first, err := f.service.ClassifyFolder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Created)
	assert.Len(t, f.engine.batches, 3, "5 documents in batches of 2")

	second, err := f.service.ClassifyFolder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Len(t, f.engine.batches, 3, "engine not called again")

	firstIDs := map[string]string{}
	for _, c := range first.ClassifiedDocuments {
		firstIDs[c.DocumentID] = c.ID
	}
	require.Len(t, second.ClassifiedDocuments, 5)
	for _, c := range second.ClassifiedDocuments {
		assert.Equal(t, firstIDs[c.DocumentID], c.ID)
		require.NotNil(t, c.Document)
	}

	_, _, classifications := f.store.Counts()
	assert.Equal(t, 5, classifications)
}

func TestService_ClassifyFolder_Recursion(t *testing.T) {
	texts := map[string]string{
		"sample/top.txt":        "I love this",
		"sample/inner/deep.txt": "I hate this",
	}

	t.Run("recursive includes descendants", func(t *testing.T) {
		f := newFixture(t, 10, texts)
		result, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: true,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]models.SentimentLabel{
			"sample/top.txt":        models.SentimentPositive,
			"sample/inner/deep.txt": models.SentimentNegative,
		}, labelsByPath(result))
	})

	t.Run("non-recursive stays in the folder", func(t *testing.T) {
		f := newFixture(t, 10, texts)
		result, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: false,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]models.SentimentLabel{
			"sample/top.txt": models.SentimentPositive,
		}, labelsByPath(result))
	})

	t.Run("nested path", func(t *testing.T) {
		f := newFixture(t, 10, texts)
		result, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample/inner", Recursive: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "sample/inner", result.FolderPath)
		assert.Len(t, result.ClassifiedDocuments, 1)
	})
}

func TestService_ClassifyFolder_Truncates(t *testing.T) {
	f := newFixture(t, 10, map[string]string{"sample/long.txt": strings.Repeat("é", 80)})

	_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
		OwnerID: "user-1", FolderPath: "sample", Recursive: true,
	})
	require.NoError(t, err)

	require.Len(t, f.engine.batches, 1)
	assert.Equal(t, strings.Repeat("é", 50), f.engine.batches[0][0])
}

func TestService_ClassifyFolder_Errors(t *testing.T) {
	texts := map[string]string{"sample/a.txt": "I love this", "sample/b.txt": "I hate this"}

	t.Run("folder not found", func(t *testing.T) {
		f := newFixture(t, 2, texts)
		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample/missing/inner",
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty folder", func(t *testing.T) {
		f := newFixture(t, 2, nil)
		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: true,
		})
		require.True(t, errors.Is(err, domain.ErrValidation))
		assert.Contains(t, err.Error(), "no documents in folder to classify")
	})

	t.Run("missing folder path", func(t *testing.T) {
		f := newFixture(t, 2, texts)
		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{OwnerID: "user-1"})
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("engine failure", func(t *testing.T) {
		f := newFixture(t, 2, texts)
		f.engine.err = errors.New("model offline")

		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: true,
		})
		var classErr *domain.ClassificationError
		assert.ErrorAs(t, err, &classErr)
		assert.Empty(t, dirEntries(t, f.workspaces))
	})

	t.Run("result count mismatch", func(t *testing.T) {
		f := newFixture(t, 2, texts)
		f.engine.drop = true

		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: true,
		})
		var classErr *domain.ClassificationError
		require.ErrorAs(t, err, &classErr)
		_, _, classifications := f.store.Counts()
		assert.Zero(t, classifications)
	})

	t.Run("unknown label", func(t *testing.T) {
		f := newFixture(t, 2, texts)
		f.engine.label = "LABEL_7"

		_, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
			OwnerID: "user-1", FolderPath: "sample", Recursive: true,
		})
		var classErr *domain.ClassificationError
		require.ErrorAs(t, err, &classErr)
		assert.ErrorIs(t, err, classifier.ErrUnknownLabel)
	})
}

func TestService_ClassifyFolder_SkipsDocumentsWithoutBlob(t *testing.T) {
	f := newFixture(t, 2, map[string]string{"sample/a.txt": "I love this"})

	orphan := &models.Document{
		FolderID:     f.folders["sample"].ID,
		OwnerID:      "user-1",
		Filename:     "orphan.txt",
		RelativePath: "sample/orphan.txt",
	}
	require.NoError(t, memory.NewDocumentRepository(f.store).Create(context.Background(), orphan))

	result, err := f.service.ClassifyFolder(context.Background(), &docsysSvc.ClassifyFolderRequest{
		OwnerID: "user-1", FolderPath: "sample", Recursive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, map[string]models.SentimentLabel{"sample/a.txt": models.SentimentPositive}, labelsByPath(result))
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
