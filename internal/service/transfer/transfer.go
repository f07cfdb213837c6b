package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docusight/internal/blobstore"
	"docusight/internal/domain"
	"docusight/internal/worker"
)

// Config controls chunking, addressing and throttling of blob traffic
type Config struct {
	UploadRoot        string // Remote directory for uploaded blobs, without slashes
	ChunkSize         int
	RequestsPerSecond float64
	Burst             int
}

// Service moves normalized text between the staging area and the blob store.
// Every remote call waits on the rate limiter and runs in the worker pool.
type Service struct {
	store     blobstore.Store
	pool      *worker.Pool
	limiter   *rate.Limiter
	root      string
	chunkSize int
	logger    *slog.Logger
}

// NewService creates a transfer service
func NewService(store blobstore.Store, pool *worker.Pool, cfg Config, logger *slog.Logger) *Service {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4 << 20
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		store:     store,
		pool:      pool,
		limiter:   rate.NewLimiter(limit, burst),
		root:      "/" + strings.Trim(cfg.UploadRoot, "/"),
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// UploadRoot returns the remote directory blobs are written under
func (s *Service) UploadRoot() string { return s.root }

type uploadFile struct {
	rel    string
	local  string
	remote string
	size   int64
}

// Upload sends every file (relative to baseDir) through one batch of chunked
// sessions and returns relative path → remote blob path.
//
// Any failed session fails the whole upload. Entries the store already
// committed in that batch stay in place.
func (s *Service) Upload(ctx context.Context, baseDir string, relPaths []string) (map[string]string, error) {
	refs := make(map[string]string, len(relPaths))
	if len(relPaths) == 0 {
		return refs, nil
	}

	files := make([]*uploadFile, len(relPaths))
	targets := make([]string, len(relPaths))
	for i, rel := range relPaths {
		remote := path.Join(s.root, uuid.NewString()+strings.ToLower(filepath.Ext(rel)))
		files[i] = &uploadFile{rel: rel, local: filepath.Join(baseDir, rel), remote: remote}
		targets[i] = remote
	}

	sessionIDs, err := worker.Submit(ctx, s.pool, "blob start batch", func(ctx context.Context) ([]string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.store.StartBatch(ctx, targets)
	})
	if err != nil {
		return nil, &domain.TransferError{Op: "start upload batch", Err: err}
	}
	if len(sessionIDs) != len(files) {
		s.abortBatch(ctx, sessionIDs)
		return nil, &domain.TransferError{
			Op:  "start upload batch",
			Err: fmt.Errorf("requested %d sessions, store returned %d", len(files), len(sessionIDs)),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		sessionID := sessionIDs[i]
		g.Go(func() error {
			return s.pool.Run(gctx, "blob upload "+f.rel, func(ctx context.Context) error {
				size, err := s.streamFile(ctx, sessionID, f.local)
				if err != nil {
					return fmt.Errorf("%s: %w", f.rel, err)
				}
				f.size = size
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		s.abortBatch(ctx, sessionIDs)
		return nil, &domain.TransferError{Op: "upload", Err: err}
	}

	entries := make([]blobstore.FinishEntry, len(files))
	for i, f := range files {
		entries[i] = blobstore.FinishEntry{SessionID: sessionIDs[i], Path: f.remote, Size: f.size}
	}

	results, err := worker.Submit(ctx, s.pool, "blob finish batch", func(ctx context.Context) ([]blobstore.FinishResult, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.store.FinishBatch(ctx, entries)
	})
	if err != nil {
		// The store may have forgotten some sessions already; aborting those is a no-op
		s.abortBatch(ctx, sessionIDs)
		return nil, &domain.TransferError{Op: "finish upload batch", Err: err}
	}
	if len(results) != len(entries) {
		return nil, &domain.TransferError{
			Op:  "finish upload batch",
			Err: fmt.Errorf("committed %d entries, store reported %d", len(entries), len(results)),
		}
	}

	var failed []error
	for i, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", files[i].rel, r.Err))
		}
	}
	if len(failed) > 0 {
		s.logger.Error("blob batch commit partially failed",
			"failed", len(failed),
			"total", len(entries),
		)
		return nil, &domain.TransferError{Op: "finish upload batch", Err: errors.Join(failed...)}
	}

	for _, f := range files {
		refs[f.rel] = f.remote
	}

	s.logger.Info("blobs uploaded", "count", len(files), "root", s.root)
	return refs, nil
}

// abortBatch releases sessions that will not be committed. It runs even when
// ctx is already cancelled.
func (s *Service) abortBatch(ctx context.Context, sessionIDs []string) {
	ctx = context.WithoutCancel(ctx)
	err := s.pool.Do(ctx, "blob abort batch", func(ctx context.Context) error {
		return s.store.AbortBatch(ctx, sessionIDs)
	})
	if err != nil {
		s.logger.Warn("failed to abort upload sessions", "sessions", len(sessionIDs), "error", err)
	}
}

// streamFile appends the file to its session chunk by chunk, then closes the
// session with an empty final append. Returns the number of bytes sent.
func (s *Service) streamFile(ctx context.Context, sessionID, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, s.chunkSize)
	var offset int64
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return offset, err
			}
			cursor := blobstore.Cursor{SessionID: sessionID, Offset: offset}
			if err := s.store.Append(ctx, cursor, buf[:n], false); err != nil {
				return offset, err
			}
			offset += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return offset, readErr
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return offset, err
	}
	if err := s.store.Append(ctx, blobstore.Cursor{SessionID: sessionID, Offset: offset}, nil, true); err != nil {
		return offset, err
	}
	return offset, nil
}

// Download fetches blobs one at a time into destDir, each named after the
// blob's base name. The first failure aborts the whole download.
func (s *Service) Download(ctx context.Context, blobPaths []string, destDir string) ([]string, error) {
	localPaths := make([]string, 0, len(blobPaths))

	for _, blobPath := range blobPaths {
		local := filepath.Join(destDir, path.Base(blobPath))
		err := s.pool.Do(ctx, "blob download", func(ctx context.Context) error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			return s.store.DownloadToFile(ctx, blobPath, local)
		})
		if err != nil {
			return nil, &domain.TransferError{Op: "download", Err: fmt.Errorf("%s: %w", blobPath, err)}
		}
		localPaths = append(localPaths, local)
	}

	return localPaths, nil
}

// Purge removes every blob under the upload root
func (s *Service) Purge(ctx context.Context) (int, error) {
	removed, err := worker.Submit(ctx, s.pool, "blob purge", func(ctx context.Context) (int, error) {
		return s.store.RemovePrefix(ctx, s.root)
	})
	if err != nil {
		return removed, &domain.TransferError{Op: "purge", Err: err}
	}
	return removed, nil
}
