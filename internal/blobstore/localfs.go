package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const sessionDirName = ".sessions"

type localSession struct {
	path   string
	file   *os.File
	offset int64
	closed bool
}

// LocalStore implements Store on a directory. Used for development and tests.
type LocalStore struct {
	root   string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*localSession
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, sessionDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &LocalStore{
		root:     root,
		logger:   logger,
		sessions: make(map[string]*localSession),
	}, nil
}

// StartBatch opens one temp file per path
func (s *LocalStore) StartBatch(ctx context.Context, paths []string) ([]string, error) {
	opened := make([]*localSession, 0, len(paths))
	ids := make([]string, 0, len(paths))

	for _, path := range paths {
		if _, err := s.resolve(path); err != nil {
			closeAndRemove(opened)
			return nil, err
		}
		id := uuid.NewString()
		f, err := os.Create(filepath.Join(s.root, sessionDirName, id))
		if err != nil {
			closeAndRemove(opened)
			return nil, fmt.Errorf("start upload session for %s: %w", path, err)
		}
		opened = append(opened, &localSession{path: path, file: f})
		ids = append(ids, id)
	}

	s.mu.Lock()
	for i, id := range ids {
		s.sessions[id] = opened[i]
	}
	s.mu.Unlock()

	return ids, nil
}

// Append writes chunk to the session file
func (s *LocalStore) Append(ctx context.Context, cursor Cursor, chunk []byte, close bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[cursor.SessionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("append to %s: %w", cursor.SessionID, ErrUnknownSession)
	}
	if sess.closed {
		return fmt.Errorf("append to %s: %w", cursor.SessionID, ErrSessionClosed)
	}
	if cursor.Offset != sess.offset {
		return fmt.Errorf("append to %s at %d, expected %d: %w", cursor.SessionID, cursor.Offset, sess.offset, ErrIncorrectOffset)
	}

	n, err := sess.file.Write(chunk)
	sess.offset += int64(n)
	if err != nil {
		return fmt.Errorf("append to %s: %w", cursor.SessionID, err)
	}

	if close {
		if err := sess.file.Close(); err != nil {
			return fmt.Errorf("close session %s: %w", cursor.SessionID, err)
		}
		sess.closed = true
	}
	return nil
}

// FinishBatch moves every sealed session file to its final path
func (s *LocalStore) FinishBatch(ctx context.Context, entries []FinishEntry) ([]FinishResult, error) {
	results := make([]FinishResult, len(entries))
	for i, entry := range entries {
		results[i] = FinishResult{Path: entry.Path, Err: s.finish(entry)}
	}
	return results, nil
}

func (s *LocalStore) finish(entry FinishEntry) error {
	s.mu.Lock()
	sess, ok := s.sessions[entry.SessionID]
	delete(s.sessions, entry.SessionID)
	s.mu.Unlock()

	if !ok {
		return ErrUnknownSession
	}
	tmp := sess.file.Name()
	if !sess.closed {
		closeAndRemove([]*localSession{sess})
		return ErrSessionNotClosed
	}
	if entry.Path != sess.path {
		_ = os.Remove(tmp)
		return fmt.Errorf("session opened for %s, committed as %s", sess.path, entry.Path)
	}
	if entry.Size != sess.offset {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s with size %d, uploaded %d: %w", entry.Path, entry.Size, sess.offset, ErrIncorrectOffset)
	}

	dest, err := s.resolve(entry.Path)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("create directory for %s: %w", entry.Path, err)
	}
	return os.Rename(tmp, dest)
}

// AbortBatch closes and deletes the temp file of every listed session
func (s *LocalStore) AbortBatch(ctx context.Context, sessionIDs []string) error {
	s.mu.Lock()
	aborted := make([]*localSession, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if sess, ok := s.sessions[id]; ok {
			aborted = append(aborted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	closeAndRemove(aborted)
	return nil
}

// DownloadToFile copies one stored object to localPath
func (s *LocalStore) DownloadToFile(ctx context.Context, path, localPath string) error {
	src, err := s.resolve(path)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("download %s: %w", path, err)
	}
	defer in.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("download %s: %w", path, err)
	}
	return out.Close()
}

// RemovePrefix deletes every stored object under prefix
func (s *LocalStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	dir, err := s.resolve(prefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == sessionDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("remove %s: %w", prefix, err)
	}
	return removed, nil
}

// resolve maps a store path onto the root, refusing anything that escapes it
func (s *LocalStore) resolve(path string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(path, "/"))
	if rel != "" && !filepath.IsLocal(rel) {
		return "", fmt.Errorf("blob path %q escapes store root", path)
	}
	return filepath.Join(s.root, rel), nil
}

func closeAndRemove(sessions []*localSession) {
	for _, sess := range sessions {
		name := sess.file.Name()
		_ = sess.file.Close()
		_ = os.Remove(name)
	}
}
