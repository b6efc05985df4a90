package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/blobstore"
	"github.com/minio/minio-go/v7"
)

var errUploadAborted = errors.New("minio: upload aborted")

// MetadataKey is the user metadata key holding the object CRC32C as
// 8 lowercase hex digits. On the wire it is X-Amz-Meta-Crc32c.
const MetadataKey = "Crc32c"

// Store implements blobstore.BlobStore for MinIO and S3-compatible storage.
//
// The CRC32C of every blob is kept in the object's user metadata, which
// works on backends without native checksum support.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	engine *crc32c.Engine
	logger *crc32c.Logger
}

// NewStore creates a new MinIO blob store.
// bucket is the MinIO bucket name.
// rootPrefix is prepended to all keys (e.g. "segments/").
// A nil engine uses crc32c.Default().
func NewStore(client *minio.Client, bucket, rootPrefix string, e *crc32c.Engine) *Store {
	if e == nil {
		e = crc32c.Default()
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		engine: e,
		logger: e.Logger().WithComponent("minio"),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	// Get object info to verify existence and get size
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapNotFound(err)
	}

	b := &minioBlob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   info.Size,
	}
	b.crc, b.hasCRC = decodeMetadata(info.UserMetadata)
	return b, nil
}

// Put writes a blob atomically with its CRC32C in the metadata.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	crc := s.engine.Checksum(0, data)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		UserMetadata: encodeMetadata(crc),
		AutoChecksum: minio.ChecksumCRC32C,
	})
	s.logger.LogUpload(ctx, key, int64(len(data)), 1, crc, err)
	return err
}

// Create creates a new blob for streaming writes. The checksum is only
// known after the last write, so Close attaches it with a server-side
// metadata copy.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()

	blob := &minioWritableBlob{
		ctx:    ctx,
		store:  s,
		key:    key,
		pw:     pw,
		digest: s.engine.NewDigest(0),
		done:   make(chan error, 1),
	}

	// Start upload in background
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if errors.Is(mapNotFound(err), blobstore.ErrNotFound) {
			return nil // Already gone
		}
		return err
	}
	return nil
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Strip our root prefix
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// ReadAll downloads a blob and verifies it against the checksum in its
// metadata. Blobs without one are returned unverified.
func (s *Store) ReadAll(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapNotFound(err)
	}
	defer func() { _ = obj.Close() }()

	// Stat on the object handle reads the response headers of the GET.
	info, err := obj.Stat()
	if err != nil {
		return nil, mapNotFound(err)
	}

	start := time.Now()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}

	expected, ok := decodeMetadata(info.UserMetadata)
	if !ok {
		return data, nil
	}
	verr := s.engine.Verify(expected, data)
	if verr != nil {
		var mm *crc32c.ChecksumMismatchError
		if errors.As(verr, &mm) {
			mm.Name = key
			s.logger.LogMismatch(ctx, key, mm.Expected, mm.Actual)
		}
	}
	s.logger.LogVerify(ctx, key, int64(len(data)), verr)
	s.logger.DebugContext(ctx, "read", "key", key, "duration", time.Since(start))
	if verr != nil {
		return nil, verr
	}
	return data, nil
}

func mapNotFound(err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
		return blobstore.ErrNotFound
	}
	return err
}

func encodeMetadata(crc uint32) map[string]string {
	return map[string]string{MetadataKey: fmt.Sprintf("%08x", crc)}
}

func decodeMetadata(md map[string]string) (uint32, bool) {
	v, ok := md[MetadataKey]
	if !ok {
		// Some gateways keep the key lowercase.
		v, ok = md[strings.ToLower(MetadataKey)]
	}
	if !ok {
		return 0, false
	}
	crc, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(crc), true
}

// minioBlob implements blobstore.Blob for MinIO.
type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
	crc    uint32
	hasCRC bool
}

func (b *minioBlob) Size() int64 {
	return b.size
}

// CRC32C returns the checksum recorded in the object's metadata.
func (b *minioBlob) CRC32C() (uint32, bool) {
	return b.crc, b.hasCRC
}

func (b *minioBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	opts := minio.GetObjectOptions{}
	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	defer func() { _ = obj.Close() }()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	opts := minio.GetObjectOptions{}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return obj, nil
}

func (b *minioBlob) Close() error {
	return nil
}

// minioWritableBlob implements blobstore.WritableBlob for MinIO.
type minioWritableBlob struct {
	ctx    context.Context
	store  *Store
	key    string
	pw     *io.PipeWriter
	digest *crc32c.Digest
	done   chan error

	closeMu  sync.Mutex
	closed   bool
	closeErr error
}

func (b *minioWritableBlob) Write(p []byte) (int, error) {
	n, err := b.pw.Write(p)
	if n > 0 {
		_, _ = b.digest.Write(p[:n])
	}
	return n, err
}

// Close finishes the upload and attaches the checksum. Further calls
// return the result of the first.
func (b *minioWritableBlob) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if b.closed {
		return b.closeErr
	}
	b.closed = true

	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}
	if err := <-b.done; err != nil {
		b.closeErr = err
		return err
	}

	s := b.store
	_, err := s.client.CopyObject(b.ctx,
		minio.CopyDestOptions{
			Bucket:          s.bucket,
			Object:          b.key,
			ReplaceMetadata: true,
			UserMetadata:    encodeMetadata(b.digest.Sum32()),
		},
		minio.CopySrcOptions{Bucket: s.bucket, Object: b.key},
	)
	s.logger.LogUpload(b.ctx, b.key, int64(b.digest.Len()), 0, b.digest.Sum32(), err)
	b.closeErr = err
	return err
}

func (b *minioWritableBlob) Abort() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	err := b.pw.CloseWithError(errUploadAborted)
	<-b.done
	b.closeErr = errUploadAborted
	return err
}

func (b *minioWritableBlob) Sync() error {
	return nil // Streaming upload, no sync needed
}
