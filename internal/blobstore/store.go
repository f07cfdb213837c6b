// Package blobstore implements chunked-session uploads and single-object
// downloads against the remote store holding normalized document text.
//
// An upload runs in four steps: StartBatch opens one session per target,
// Append streams bytes into a session at a known offset, a final Append with
// close=true seals it, and FinishBatch commits every sealed session at once.
// A batch abandoned before FinishBatch is released with AbortBatch.
package blobstore

import (
	"context"
	"errors"
)

// Store is the blob store contract used by the transfer service
type Store interface {
	// StartBatch opens one upload session per remote path and returns the
	// session IDs in the same order.
	StartBatch(ctx context.Context, paths []string) ([]string, error)

	// Append writes chunk at cursor.Offset. With close=true the session is
	// sealed after the write (chunk may be empty).
	Append(ctx context.Context, cursor Cursor, chunk []byte, close bool) error

	// FinishBatch commits sealed sessions. Per-entry failures are reported in
	// the results; the returned error is for failures of the call itself.
	FinishBatch(ctx context.Context, entries []FinishEntry) ([]FinishResult, error)

	// AbortBatch discards sessions that will never be committed. Unknown or
	// already finished session IDs are ignored.
	AbortBatch(ctx context.Context, sessionIDs []string) error

	// DownloadToFile fetches one object into localPath
	DownloadToFile(ctx context.Context, path, localPath string) error

	// RemovePrefix deletes every object under prefix and returns how many were removed
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// Cursor locates the next write within a session
type Cursor struct {
	SessionID string
	Offset    int64
}

// FinishEntry asks the store to commit a sealed session to Path
type FinishEntry struct {
	SessionID string
	Path      string
	Size      int64
}

// FinishResult is the per-entry outcome of FinishBatch
type FinishResult struct {
	Path string
	Err  error
}

var (
	ErrUnknownSession   = errors.New("unknown upload session")
	ErrSessionClosed    = errors.New("upload session already closed")
	ErrSessionNotClosed = errors.New("upload session not closed")
	ErrIncorrectOffset  = errors.New("incorrect upload offset")
)
