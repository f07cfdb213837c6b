package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minPartSize is the smallest non-final part S3 accepts
const minPartSize = 5 << 20

// multipartAPI is the subset of *minio.Core used for sessions
type multipartAPI interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

// objectAPI is the subset of *minio.Client used for whole objects
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Config configures the S3-compatible backend
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// multipartSession buffers appended bytes until a full part can be sent
type multipartSession struct {
	key      string
	uploadID string
	buf      bytes.Buffer
	parts    []minio.CompletePart
	offset   int64
	closed   bool
}

// MinioStore implements Store on S3 multipart uploads.
// Sessions live in memory, so a batch must start and finish on one process.
// A single session must not be appended to concurrently.
type MinioStore struct {
	multipart multipartAPI
	objects   objectAPI
	bucket    string
	region    string
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*multipartSession
}

// NewMinioStore connects to an S3-compatible endpoint
func NewMinioStore(cfg S3Config, logger *slog.Logger) (*MinioStore, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return newMinioStore(core, core.Client, cfg.Bucket, cfg.Region, logger), nil
}

func newMinioStore(multipart multipartAPI, objects objectAPI, bucket, region string, logger *slog.Logger) *MinioStore {
	return &MinioStore{
		multipart: multipart,
		objects:   objects,
		bucket:    bucket,
		region:    region,
		logger:    logger,
		sessions:  make(map[string]*multipartSession),
	}
}

// EnsureBucket creates the bucket when it does not exist
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.objects.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.objects.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", "bucket", s.bucket)
	return nil
}

// StartBatch opens one multipart upload per path. If any start fails, the
// uploads already opened by this call are aborted.
func (s *MinioStore) StartBatch(ctx context.Context, paths []string) ([]string, error) {
	started := make([]*multipartSession, 0, len(paths))
	ids := make([]string, 0, len(paths))

	for _, path := range paths {
		key := objectKey(path)
		uploadID, err := s.multipart.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{
			ContentType: "text/plain; charset=utf-8",
		})
		if err != nil {
			for _, sess := range started {
				s.abort(ctx, sess)
			}
			return nil, fmt.Errorf("start upload session for %s: %w", path, err)
		}
		started = append(started, &multipartSession{key: key, uploadID: uploadID})
		ids = append(ids, uuid.NewString())
	}

	s.mu.Lock()
	for i, id := range ids {
		s.sessions[id] = started[i]
	}
	s.mu.Unlock()

	return ids, nil
}

// Append buffers chunk and sends a part whenever the buffer reaches minPartSize
func (s *MinioStore) Append(ctx context.Context, cursor Cursor, chunk []byte, close bool) error {
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

	sess.buf.Write(chunk)
	sess.offset += int64(len(chunk))

	for sess.buf.Len() >= minPartSize {
		if err := s.flushPart(ctx, sess, minPartSize); err != nil {
			return err
		}
	}

	if close {
		if sess.buf.Len() > 0 {
			if err := s.flushPart(ctx, sess, sess.buf.Len()); err != nil {
				return err
			}
		}
		sess.closed = true
	}

	return nil
}

func (s *MinioStore) flushPart(ctx context.Context, sess *multipartSession, size int) error {
	partNumber := len(sess.parts) + 1
	data := bytes.NewReader(sess.buf.Next(size))

	part, err := s.multipart.PutObjectPart(ctx, s.bucket, sess.key, sess.uploadID, partNumber, data, int64(size), minio.PutObjectPartOptions{})
	if err != nil {
		return fmt.Errorf("upload part %d of %s: %w", partNumber, sess.key, err)
	}

	sess.parts = append(sess.parts, minio.CompletePart{PartNumber: part.PartNumber, ETag: part.ETag})
	return nil
}

// FinishBatch completes every session. Sessions are forgotten whether or not
// their commit succeeded.
func (s *MinioStore) FinishBatch(ctx context.Context, entries []FinishEntry) ([]FinishResult, error) {
	results := make([]FinishResult, len(entries))

	for i, entry := range entries {
		results[i] = FinishResult{Path: entry.Path, Err: s.finish(ctx, entry)}
		if results[i].Err != nil {
			s.logger.Warn("blob commit failed", "path", entry.Path, "error", results[i].Err)
		}
	}

	return results, nil
}

func (s *MinioStore) finish(ctx context.Context, entry FinishEntry) error {
	s.mu.Lock()
	sess, ok := s.sessions[entry.SessionID]
	delete(s.sessions, entry.SessionID)
	s.mu.Unlock()

	if !ok {
		return ErrUnknownSession
	}
	if !sess.closed {
		s.abort(ctx, sess)
		return ErrSessionNotClosed
	}
	if objectKey(entry.Path) != sess.key {
		s.abort(ctx, sess)
		return fmt.Errorf("session opened for %s, committed as %s", sess.key, entry.Path)
	}
	if entry.Size != sess.offset {
		s.abort(ctx, sess)
		return fmt.Errorf("commit %s with size %d, uploaded %d: %w", entry.Path, entry.Size, sess.offset, ErrIncorrectOffset)
	}

	// S3 needs at least one part; empty documents are written as plain objects
	if len(sess.parts) == 0 {
		s.abort(ctx, sess)
		_, err := s.objects.PutObject(ctx, s.bucket, sess.key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
			ContentType: "text/plain; charset=utf-8",
		})
		return err
	}

	_, err := s.multipart.CompleteMultipartUpload(ctx, s.bucket, sess.key, sess.uploadID, sess.parts, minio.PutObjectOptions{})
	return err
}

// AbortBatch aborts the multipart upload behind every listed session and
// drops its buffered bytes
func (s *MinioStore) AbortBatch(ctx context.Context, sessionIDs []string) error {
	s.mu.Lock()
	aborted := make([]*multipartSession, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if sess, ok := s.sessions[id]; ok {
			aborted = append(aborted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range aborted {
		if err := s.multipart.AbortMultipartUpload(ctx, s.bucket, sess.key, sess.uploadID); err != nil {
			errs = append(errs, fmt.Errorf("abort upload of %s: %w", sess.key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *MinioStore) abort(ctx context.Context, sess *multipartSession) {
	if err := s.multipart.AbortMultipartUpload(ctx, s.bucket, sess.key, sess.uploadID); err != nil {
		s.logger.Warn("abort multipart upload failed", "key", sess.key, "error", err)
	}
}

// DownloadToFile fetches one object into localPath
func (s *MinioStore) DownloadToFile(ctx context.Context, path, localPath string) error {
	if err := s.objects.FGetObject(ctx, s.bucket, objectKey(path), localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", path, err)
	}
	return nil
}

// RemovePrefix deletes every object under prefix
func (s *MinioStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = objectKey(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	removed := 0
	var errs []error
	for obj := range s.objects.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if err := s.objects.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", obj.Key, err))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

// objectKey maps a store path ("/uploads/x.txt") to an S3 key ("uploads/x.txt")
func objectKey(path string) string {
	return strings.TrimPrefix(path, "/")
}
