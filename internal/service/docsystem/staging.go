package docsystem

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"docusight/internal/domain"
	"docusight/internal/worker"
)

// StagerConfig bounds what a single archive may put on disk
type StagerConfig struct {
	Root              string // Parent directory for all staging directories
	ChunkSize         int    // Buffer size used while spooling the archive
	MaxArchiveBytes   int64
	MaxEntries        int
	MaxExtractedBytes int64
}

// Stager unpacks uploaded archives into private per-request directories.
type Stager struct {
	cfg    StagerConfig
	pool   *worker.Pool
	logger *slog.Logger
}

// StagedArchive is an extracted archive on local disk.
//
// Files and Dirs are slash-separated and relative to Dir. RootDir is the
// directory mirrored by the root folder; RootName is its relative path.
type StagedArchive struct {
	Dir      string
	RootName string
	RootDir  string
	Files    []string
	Dirs     []string
}

// Cleanup removes the staging directory. Safe to call more than once.
func (s *StagedArchive) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// NewStager creates a stager rooted at cfg.Root
func NewStager(cfg StagerConfig, pool *worker.Pool, logger *slog.Logger) *Stager {
	if cfg.Root == "" {
		cfg.Root = os.TempDir()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}
	return &Stager{cfg: cfg, pool: pool, logger: logger}
}

var unsafeOwnerChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// NewWorkspace creates an empty private directory for ownerID.
// The caller removes it when done.
func (s *Stager) NewWorkspace(ownerID string) (string, error) {
	if err := os.MkdirAll(s.cfg.Root, 0o755); err != nil {
		return "", &domain.IOError{Op: "create staging root", Path: s.cfg.Root, Err: err}
	}
	owner := unsafeOwnerChars.ReplaceAllString(ownerID, "_")
	if owner == "" {
		owner = "anonymous"
	}
	dir, err := os.MkdirTemp(s.cfg.Root, owner+"-*")
	if err != nil {
		return "", &domain.IOError{Op: "create staging dir", Path: s.cfg.Root, Err: err}
	}
	return dir, nil
}

// Stage writes the archive stream to a fresh directory, extracts it in place
// and deletes the archive file. On failure nothing is left on disk.
func (s *Stager) Stage(ctx context.Context, ownerID, archiveName string, r io.Reader) (*StagedArchive, error) {
	dir, err := s.NewWorkspace(ownerID)
	if err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, dir, archiveName, r)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.logger.Error("failed to remove staging dir", "dir", dir, "error", rmErr)
		}
		return nil, err
	}

	s.logger.Info("archive staged",
		"archive", archiveName,
		"dir", dir,
		"root", staged.RootName,
		"files", len(staged.Files),
		"dirs", len(staged.Dirs),
	)
	return staged, nil
}

func (s *Stager) stage(ctx context.Context, dir, archiveName string, r io.Reader) (*StagedArchive, error) {
	archivePath := filepath.Join(dir, "."+uuid.NewString()+".zip")
	if err := s.spool(archivePath, r); err != nil {
		return nil, err
	}

	// extraction must have stopped writing before dir is removed on failure
	var staged *StagedArchive
	err := s.pool.Run(ctx, "extract archive", func(ctx context.Context) error {
		var err error
		staged, err = s.extract(ctx, dir, archivePath, archiveName)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := os.Remove(archivePath); err != nil {
		return nil, &domain.IOError{Op: "remove archive", Path: archivePath, Err: err}
	}
	return staged, nil
}

// spool copies the stream to disk through a fixed-size buffer
func (s *Stager) spool(dst string, r io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return &domain.IOError{Op: "create archive", Path: dst, Err: err}
	}
	defer f.Close()

	src := r
	if s.cfg.MaxArchiveBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxArchiveBytes+1)
	}

	buf := make([]byte, s.cfg.ChunkSize)
	n, err := io.CopyBuffer(struct{ io.Writer }{f}, src, buf)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return &domain.IOError{Op: "write archive", Path: dst, Err: err}
		}
		return &domain.ExtractionError{Archive: filepath.Base(dst), Err: fmt.Errorf("read upload: %w", err)}
	}
	if s.cfg.MaxArchiveBytes > 0 && n > s.cfg.MaxArchiveBytes {
		return &domain.ValidationError{
			Message: fmt.Sprintf("archive exceeds %d bytes", s.cfg.MaxArchiveBytes),
		}
	}
	if err := f.Sync(); err != nil {
		return &domain.IOError{Op: "sync archive", Path: dst, Err: err}
	}
	return nil
}

type stagedEntry struct {
	file *zip.File
	rel  string // path relative to the staging dir after the root prefix is applied
}

func (s *Stager) extract(ctx context.Context, dir, archivePath, archiveName string) (*StagedArchive, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &domain.ExtractionError{Archive: archiveName, Err: err}
	}
	defer zr.Close()

	entries, rootName, err := s.plan(zr.File, archiveName)
	if err != nil {
		return nil, err
	}

	staged := &StagedArchive{
		Dir:      dir,
		RootName: rootName,
		RootDir:  filepath.Join(dir, filepath.FromSlash(rootName)),
	}
	dirs := map[string]bool{rootName: true}

	remaining := s.cfg.MaxExtractedBytes
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := filepath.Join(dir, filepath.FromSlash(e.rel))
		if e.file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, &domain.IOError{Op: "create dir", Path: target, Err: err}
			}
			addDirs(dirs, e.rel)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, &domain.IOError{Op: "create dir", Path: filepath.Dir(target), Err: err}
		}
		addDirs(dirs, path.Dir(e.rel))

		written, err := writeEntry(e.file, target, remaining, s.cfg.MaxExtractedBytes > 0, archiveName)
		if err != nil {
			return nil, err
		}
		if s.cfg.MaxExtractedBytes > 0 {
			remaining -= written
		}

		if mod := e.file.Modified; !mod.IsZero() {
			if err := os.Chtimes(target, mod, mod); err != nil {
				s.logger.Debug("failed to restore mtime", "file", e.rel, "error", err)
			}
		}
		staged.Files = append(staged.Files, e.rel)
	}

	if len(staged.Files) == 0 {
		return nil, &domain.ExtractionError{Archive: archiveName, Err: errors.New("archive contains no files")}
	}
	if err := os.MkdirAll(staged.RootDir, 0o755); err != nil {
		return nil, &domain.IOError{Op: "create dir", Path: staged.RootDir, Err: err}
	}

	for d := range dirs {
		staged.Dirs = append(staged.Dirs, d)
	}
	sort.Strings(staged.Dirs)
	sort.Strings(staged.Files)
	return staged, nil
}

// plan validates every entry before anything is written and decides the root
// folder: a single shared top-level directory, or else the archive stem.
func (s *Stager) plan(files []*zip.File, archiveName string) ([]stagedEntry, string, error) {
	if s.cfg.MaxEntries > 0 && len(files) > s.cfg.MaxEntries {
		return nil, "", &domain.ExtractionError{
			Archive: archiveName,
			Err:     fmt.Errorf("archive has %d entries, limit is %d", len(files), s.cfg.MaxEntries),
		}
	}

	var kept []*zip.File
	var total uint64
	tops := map[string]bool{}
	nested := true
	for _, f := range files {
		name := strings.TrimPrefix(f.Name, "./")
		if isArchiveMetadata(name) {
			continue
		}
		clean := strings.TrimSuffix(name, "/")
		if clean == "" {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(clean)) || strings.Contains(clean, `\`) {
			return nil, "", &domain.ExtractionError{
				Archive: archiveName,
				Err:     fmt.Errorf("entry %q escapes the archive root", f.Name),
			}
		}

		total += f.UncompressedSize64
		if s.cfg.MaxExtractedBytes > 0 && total > uint64(s.cfg.MaxExtractedBytes) {
			return nil, "", &domain.ExtractionError{
				Archive: archiveName,
				Err:     fmt.Errorf("archive expands beyond %d bytes", s.cfg.MaxExtractedBytes),
			}
		}

		top, _, found := strings.Cut(clean, "/")
		tops[top] = true
		if !found && !f.FileInfo().IsDir() {
			nested = false
		}
		kept = append(kept, f)
	}

	var prefix, rootName string
	if nested && len(tops) == 1 {
		for top := range tops {
			rootName = top
		}
	} else {
		rootName = archiveStem(archiveName)
		prefix = rootName + "/"
	}

	entries := make([]stagedEntry, 0, len(kept))
	for _, f := range kept {
		rel := strings.TrimSuffix(strings.TrimPrefix(f.Name, "./"), "/")
		entries = append(entries, stagedEntry{file: f, rel: prefix + rel})
	}
	return entries, rootName, nil
}

func writeEntry(f *zip.File, target string, limit int64, limited bool, archiveName string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, &domain.ExtractionError{Archive: archiveName, Err: fmt.Errorf("open %s: %w", f.Name, err)}
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &domain.IOError{Op: "create file", Path: target, Err: err}
	}
	defer out.Close()

	var n int64
	if limited {
		// declared sizes can lie; stop at the remaining budget
		n, err = io.CopyN(out, rc, limit+1)
		if err == io.EOF {
			err = nil
		}
		if err == nil && n > limit {
			return n, &domain.ExtractionError{Archive: archiveName, Err: errors.New("archive expands beyond size limit")}
		}
	} else {
		n, err = io.Copy(out, rc)
	}
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return n, &domain.IOError{Op: "write file", Path: target, Err: err}
		}
		return n, &domain.ExtractionError{Archive: archiveName, Err: fmt.Errorf("read %s: %w", f.Name, err)}
	}
	return n, nil
}

// addDirs records rel and every ancestor of it
func addDirs(dirs map[string]bool, rel string) {
	for rel != "." && rel != "" && !dirs[rel] {
		dirs[rel] = true
		rel = path.Dir(rel)
	}
}

func isArchiveMetadata(name string) bool {
	return name == "__MACOSX" || strings.HasPrefix(name, "__MACOSX/") || path.Base(name) == ".DS_Store"
}

func archiveStem(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(stem)
	if stem == "" || stem == "." || stem == ".." {
		return "archive"
	}
	return stem
}
