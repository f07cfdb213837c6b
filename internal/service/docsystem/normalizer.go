package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docusight/internal/domain"
	"docusight/internal/service/docsystem/converter"
	"docusight/internal/worker"
)

// NormalizedExt is the extension of every normalized text file
const NormalizedExt = ".txt"

// OriginalMeta describes the file a normalized text file was produced from
type OriginalMeta struct {
	Filename     string // original base name, e.g. "report.pdf"
	RelativePath string // original path relative to the staging dir
	Size         int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
	TextSize     int64 // bytes of normalized UTF-8 text
}

// NormalizedSet maps normalized text path (relative to the staging dir) to
// the metadata of its source file. Unsupported and failed files are absent.
type NormalizedSet map[string]OriginalMeta

// Normalizer converts staged files to UTF-8 plain text in place
type Normalizer struct {
	registry *converter.ConverterRegistry
	pool     *worker.Pool
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer over the given converter registry
func NewNormalizer(registry *converter.ConverterRegistry, pool *worker.Pool, logger *slog.Logger) *Normalizer {
	return &Normalizer{registry: registry, pool: pool, logger: logger}
}

// Normalize converts every file in files (slash paths relative to dir).
// Per-file failures are logged and leave the file out of the result; only
// context cancellation aborts the batch.
func (n *Normalizer) Normalize(ctx context.Context, dir string, files []string) (NormalizedSet, error) {
	targets := planTargets(files)
	stagedAt := time.Now().UTC()

	set := make(NormalizedSet, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.pool.Size())
	for _, rel := range sortedKeys(targets) {
		target := targets[rel]
		g.Go(func() error {
			err := n.pool.Do(gctx, "normalize "+rel, func(ctx context.Context) error {
				meta, err := n.normalizeFile(ctx, dir, rel, target, stagedAt)
				if err != nil {
					n.logFailure(rel, err)
					return nil
				}
				mu.Lock()
				set[target] = *meta
				mu.Unlock()
				return nil
			})
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				n.logFailure(rel, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.logger.Info("normalization complete",
		"dir", dir,
		"files", len(files),
		"normalized", len(set),
	)
	return set, nil
}

func (n *Normalizer) logFailure(rel string, err error) {
	var unsupported *domain.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		n.logger.Debug("skipping unsupported file", "file", rel, "ext", unsupported.Ext)
		return
	}
	n.logger.Warn("failed to normalize file", "file", rel, "error", err)
}

func (n *Normalizer) normalizeFile(ctx context.Context, dir, rel, target string, stagedAt time.Time) (meta *OriginalMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Debug("converter panic", "file", rel, "stack", string(debug.Stack()))
			meta, err = nil, &domain.ConversionError{Path: rel, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if n.registry.GetConverter(path.Ext(rel)) == nil {
		return nil, &domain.UnsupportedFormatError{Ext: strings.ToLower(path.Ext(rel))}
	}

	src := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(src)
	if err != nil {
		return nil, &domain.IOError{Op: "stat", Path: src, Err: err}
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return nil, &domain.IOError{Op: "read", Path: src, Err: err}
	}

	text, err := n.registry.Convert(ctx, rel, content)
	if err != nil {
		return nil, &domain.ConversionError{Path: rel, Err: err}
	}

	// Converters hand back Go strings that may still carry a BOM or invalid
	// bytes copied from the source; the decoder replaces the latter with U+FFFD.
	text, _, err = transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), text)
	if err != nil {
		return nil, &domain.ConversionError{Path: rel, Err: err}
	}

	dst := filepath.Join(dir, filepath.FromSlash(target))
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return nil, &domain.IOError{Op: "write", Path: dst, Err: err}
	}
	if dst != src {
		if err := os.Remove(src); err != nil {
			return nil, &domain.IOError{Op: "remove", Path: src, Err: err}
		}
	}

	return &OriginalMeta{
		Filename:     path.Base(rel),
		RelativePath: rel,
		Size:         info.Size(),
		CreatedAt:    stagedAt,
		ModifiedAt:   info.ModTime().UTC(),
		TextSize:     int64(len(text)),
	}, nil
}

// planTargets picks the output path for every file up front so concurrent
// conversions never race for a name. "a.pdf" becomes "a.txt" unless that path
// belongs to another file, in which case it becomes "a.pdf.txt".
func planTargets(files []string) map[string]string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	originals := make(map[string]bool, len(sorted))
	for _, f := range sorted {
		originals[f] = true
	}

	claimed := make(map[string]bool, len(sorted))
	targets := make(map[string]string, len(sorted))

	// passthrough text files keep their own path
	for _, f := range sorted {
		if strings.EqualFold(path.Ext(f), NormalizedExt) {
			targets[f] = f
			claimed[f] = true
		}
	}
	for _, f := range sorted {
		if _, done := targets[f]; done {
			continue
		}
		target := strings.TrimSuffix(f, path.Ext(f)) + NormalizedExt
		if originals[target] || claimed[target] {
			target = f + NormalizedExt
		}
		for i := 1; originals[target] || claimed[target]; i++ {
			target = fmt.Sprintf("%s.%d%s", f, i, NormalizedExt)
		}
		targets[f] = target
		claimed[target] = true
	}
	return targets
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
