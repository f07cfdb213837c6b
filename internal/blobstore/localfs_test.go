package blobstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	return store
}

func TestLocalStoreUploadAndDownload(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	ids, err := store.StartBatch(ctx, []string{"/uploads/a.txt", "/uploads/b.txt"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[0], Offset: 0}, []byte("hello "), false))
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[0], Offset: 6}, []byte("world"), false))
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[0], Offset: 11}, nil, true))
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[1], Offset: 0}, nil, true))

	results, err := store.FinishBatch(ctx, []FinishEntry{
		{SessionID: ids[0], Path: "/uploads/a.txt", Size: 11},
		{SessionID: ids[1], Path: "/uploads/b.txt", Size: 0},
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Path)
	}

	dest := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, store.DownloadToFile(ctx, "/uploads/a.txt", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestLocalStoreAppendChecks(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	ids, err := store.StartBatch(ctx, []string{"/uploads/a.txt"})
	require.NoError(t, err)

	err = store.Append(ctx, Cursor{SessionID: "missing"}, []byte("x"), false)
	assert.ErrorIs(t, err, ErrUnknownSession)

	err = store.Append(ctx, Cursor{SessionID: ids[0], Offset: 5}, []byte("x"), false)
	assert.ErrorIs(t, err, ErrIncorrectOffset)

	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[0]}, []byte("x"), true))
	err = store.Append(ctx, Cursor{SessionID: ids[0], Offset: 1}, []byte("y"), false)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestLocalStoreFinishReportsPerEntryFailures(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	ids, err := store.StartBatch(ctx, []string{"/uploads/open.txt", "/uploads/done.txt"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[1]}, []byte("ok"), true))

	results, err := store.FinishBatch(ctx, []FinishEntry{
		{SessionID: ids[0], Path: "/uploads/open.txt"},
		{SessionID: ids[1], Path: "/uploads/done.txt", Size: 2},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, ErrSessionNotClosed)
	assert.NoError(t, results[1].Err)
}

func TestLocalStoreRejectsEscapingPaths(t *testing.T) {
	store := newTestLocalStore(t)

	_, err := store.StartBatch(context.Background(), []string{"/uploads/../../etc/passwd"})
	assert.Error(t, err)
}

func TestLocalStoreRemovePrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	paths := []string{"/uploads/a.txt", "/uploads/b.txt", "/other/c.txt"}
	ids, err := store.StartBatch(ctx, paths)
	require.NoError(t, err)

	entries := make([]FinishEntry, len(ids))
	for i, id := range ids {
		require.NoError(t, store.Append(ctx, Cursor{SessionID: id}, []byte("x"), true))
		entries[i] = FinishEntry{SessionID: id, Path: paths[i], Size: 1}
	}
	_, err = store.FinishBatch(ctx, entries)
	require.NoError(t, err)

	removed, err := store.RemovePrefix(ctx, "/uploads")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = store.RemovePrefix(ctx, "/missing")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	dest := filepath.Join(t.TempDir(), "c.txt")
	assert.NoError(t, store.DownloadToFile(ctx, "/other/c.txt", dest))
}

func TestLocalStoreAbortBatch(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root, testLogger())
	require.NoError(t, err)

	ids, err := store.StartBatch(ctx, []string{"/uploads/a.txt", "/uploads/b.txt"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[0]}, []byte("partial"), false))
	require.NoError(t, store.Append(ctx, Cursor{SessionID: ids[1]}, nil, true))

	require.NoError(t, store.AbortBatch(ctx, append(ids, "unknown")))

	pending, err := os.ReadDir(filepath.Join(root, sessionDirName))
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, store.sessions)

	results, err := store.FinishBatch(ctx, []FinishEntry{{SessionID: ids[1], Path: "/uploads/b.txt"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, ErrUnknownSession)
	assert.NoFileExists(t, filepath.Join(root, "uploads", "b.txt"))
}
