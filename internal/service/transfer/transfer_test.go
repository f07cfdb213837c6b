package transfer

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
	"docusight/internal/domain"
	"docusight/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type appendCall struct {
	sessionID string
	offset    int64
	size      int
	close     bool
}

// recordingStore wraps a real store and lets tests distort its answers
type recordingStore struct {
	blobstore.Store

	root string

	mu             sync.Mutex
	appends        []appendCall
	aborted        []string
	cancelOnAppend context.CancelFunc
	startedPaths   []string
	dropSession  bool
	failFinish   map[int]error
	downloadErr  map[string]error
	downloaded   []string
}

func (r *recordingStore) StartBatch(ctx context.Context, paths []string) ([]string, error) {
	r.startedPaths = append(r.startedPaths, paths...)
	ids, err := r.Store.StartBatch(ctx, paths)
	if err != nil {
		return nil, err
	}
	if r.dropSession {
		return ids[:len(ids)-1], nil
	}
	return ids, nil
}

func (r *recordingStore) Append(ctx context.Context, cursor blobstore.Cursor, chunk []byte, close bool) error {
	r.mu.Lock()
	r.appends = append(r.appends, appendCall{sessionID: cursor.SessionID, offset: cursor.Offset, size: len(chunk), close: close})
	cancel := r.cancelOnAppend
	r.mu.Unlock()
	if err := r.Store.Append(ctx, cursor, chunk, close); err != nil {
		return err
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *recordingStore) AbortBatch(ctx context.Context, sessionIDs []string) error {
	r.mu.Lock()
	r.aborted = append(r.aborted, sessionIDs...)
	r.mu.Unlock()
	return r.Store.AbortBatch(ctx, sessionIDs)
}

// pendingSessions lists the temp files the local store still holds open
func (r *recordingStore) pendingSessions(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(r.root, ".sessions"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (r *recordingStore) FinishBatch(ctx context.Context, entries []blobstore.FinishEntry) ([]blobstore.FinishResult, error) {
	results, err := r.Store.FinishBatch(ctx, entries)
	if err != nil {
		return nil, err
	}
	for i, injected := range r.failFinish {
		results[i].Err = injected
	}
	return results, nil
}

func (r *recordingStore) DownloadToFile(ctx context.Context, path, localPath string) error {
	r.downloaded = append(r.downloaded, path)
	if err := r.downloadErr[path]; err != nil {
		return err
	}
	return r.Store.DownloadToFile(ctx, path, localPath)
}

func newTestService(t *testing.T, chunkSize int) (*Service, *recordingStore) {
	t.Helper()
	root := t.TempDir()
	local, err := blobstore.NewLocalStore(root, testLogger())
	require.NoError(t, err)

	store := &recordingStore{Store: local, root: root, failFinish: map[int]error{}, downloadErr: map[string]error{}}
	svc := NewService(store, worker.NewPool(4, testLogger()), Config{
		UploadRoot: "uploads",
		ChunkSize:  chunkSize,
	}, testLogger())
	return svc, store
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestUploadEmptyInput(t *testing.T) {
	svc, store := newTestService(t, 4)

	refs, err := svc.Upload(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Empty(t, store.startedPaths)
}

func TestUploadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, 4)
	dir := writeFiles(t, map[string]string{
		"sample/a.txt":     "0123456789",
		"sample/sub/b.txt": "",
	})

	refs, err := svc.Upload(ctx, dir, []string{"sample/a.txt", "sample/sub/b.txt"})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	for rel, remote := range refs {
		assert.True(t, strings.HasPrefix(remote, "/uploads/"), remote)
		assert.Equal(t, ".txt", filepath.Ext(remote), rel)
	}
	assert.NotEqual(t, refs["sample/a.txt"], refs["sample/sub/b.txt"])

	var closes int
	for _, c := range store.appends {
		if c.close {
			closes++
			assert.Equal(t, 0, c.size, "close marker carries no data")
		}
	}
	assert.Equal(t, 2, closes)

	out := t.TempDir()
	paths, err := svc.Download(ctx, []string{refs["sample/a.txt"]}, out)
	require.NoError(t, err)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, filepath.Base(refs["sample/a.txt"]), filepath.Base(paths[0]))
}

func TestUploadChunksAtOffsets(t *testing.T) {
	svc, store := newTestService(t, 4)
	dir := writeFiles(t, map[string]string{"a.txt": "0123456789"})

	_, err := svc.Upload(context.Background(), dir, []string{"a.txt"})
	require.NoError(t, err)

	want := []appendCall{
		{offset: 0, size: 4},
		{offset: 4, size: 4},
		{offset: 8, size: 2},
		{offset: 10, size: 0, close: true},
	}
	require.Len(t, store.appends, len(want))
	for i, w := range want {
		assert.Equal(t, w.offset, store.appends[i].offset, "append %d", i)
		assert.Equal(t, w.size, store.appends[i].size, "append %d", i)
		assert.Equal(t, w.close, store.appends[i].close, "append %d", i)
	}
}

func TestUploadFailsOnSessionCountMismatch(t *testing.T) {
	svc, store := newTestService(t, 4)
	store.dropSession = true
	dir := writeFiles(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	_, err := svc.Upload(context.Background(), dir, []string{"a.txt", "b.txt"})

	var transferErr *domain.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Contains(t, err.Error(), "requested 2 sessions")
	assert.Empty(t, store.appends)
}

func TestUploadFailsWhenAnyEntryFails(t *testing.T) {
	svc, store := newTestService(t, 4)
	store.failFinish[1] = errors.New("insufficient space")
	dir := writeFiles(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	refs, err := svc.Upload(context.Background(), dir, []string{"a.txt", "b.txt"})

	var transferErr *domain.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Contains(t, err.Error(), "insufficient space")
	assert.Nil(t, refs)
}

func TestUploadMissingLocalFile(t *testing.T) {
	svc, _ := newTestService(t, 4)

	_, err := svc.Upload(context.Background(), t.TempDir(), []string{"missing.txt"})

	var transferErr *domain.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUploadReleasesSessionsOnFailure(t *testing.T) {
	svc, store := newTestService(t, 4)
	dir := writeFiles(t, map[string]string{"a.txt": "0123456789"})

	_, err := svc.Upload(context.Background(), dir, []string{"a.txt", "b.txt"})

	var transferErr *domain.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Len(t, store.aborted, 2)
	assert.Empty(t, store.pendingSessions(t))
}

func TestUploadReleasesSessionsOnCancel(t *testing.T) {
	svc, store := newTestService(t, 4)
	dir := writeFiles(t, map[string]string{"a.txt": "0123456789"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.cancelOnAppend = cancel

	_, err := svc.Upload(ctx, dir, []string{"a.txt"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.aborted, 1)
	assert.Empty(t, store.pendingSessions(t))
}

func TestUploadSuccessLeavesNoSessions(t *testing.T) {
	svc, store := newTestService(t, 4)
	dir := writeFiles(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	_, err := svc.Upload(context.Background(), dir, []string{"a.txt", "b.txt"})
	require.NoError(t, err)

	assert.Empty(t, store.aborted)
	assert.Empty(t, store.pendingSessions(t))
}

func TestDownloadAbortsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, 64)
	dir := writeFiles(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	refs, err := svc.Upload(ctx, dir, []string{"a.txt", "b.txt"})
	require.NoError(t, err)

	cause := errors.New("connection reset")
	store.downloadErr[refs["a.txt"]] = cause

	_, err = svc.Download(ctx, []string{refs["a.txt"], refs["b.txt"]}, t.TempDir())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{refs["a.txt"]}, store.downloaded, "download stops at the first failure")
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 64)
	dir := writeFiles(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	_, err := svc.Upload(ctx, dir, []string{"a.txt", "b.txt"})
	require.NoError(t, err)

	removed, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}
