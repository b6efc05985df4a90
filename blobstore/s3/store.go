package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/blobstore"
)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client Client
	bucket string
	prefix string
	engine *crc32c.Engine
	upload UploadConfig
	logger *crc32c.Logger
}

// New creates a Store with a client built from the default AWS
// configuration chain (environment, shared config, IMDS).
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	o := buildOptions(optFns)

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		so.UsePathStyle = o.usePathStyle
	})

	return newStore(client, bucket, o), nil
}

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "my-db/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...Option) *Store {
	o := buildOptions(append([]Option{WithPrefix(rootPrefix)}, optFns...))
	return newStore(client, bucket, o)
}

func newStore(client Client, bucket string, o options) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: o.prefix,
		engine: o.engine,
		upload: o.upload,
		logger: o.engine.Logger().WithComponent("s3"),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens a blob for reading. The returned blob implements
// blobstore.Checksummed.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put writes a blob with CRC32C validation. Blobs larger than PartSize go
// through a parallel multipart upload with a FULL_OBJECT checksum.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	start := time.Now()

	if int64(len(data)) <= s.upload.PartSize {
		crc := s.engine.Checksum(0, data)
		input := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		}
		if s.upload.EnableChecksum {
			input.ChecksumCRC32C = aws.String(EncodeChecksum(crc))
		}
		_, err := s.client.PutObject(ctx, input)
		s.logger.LogUpload(ctx, key, int64(len(data)), 1, crc, err)
		if err != nil {
			return fmt.Errorf("s3: put %s: %w", name, err)
		}
		return nil
	}

	res, err := s.putMultipart(ctx, key, data)
	s.logger.LogUpload(ctx, key, int64(len(data)), res.parts, res.crc, err)
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", name, err)
	}
	s.logger.DebugContext(ctx, "multipart upload", "key", key, "duration", time.Since(start))
	return nil
}

// Create creates a blob that is streamed to S3 as it is written.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	return newStreamingWritableBlob(ctx, s, newUploader(s.client, s.upload), key), nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns the names of all blobs with the prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}

// ReadAll downloads a blob with checksum mode enabled and verifies it
// against the stored full-object CRC32C when S3 has one.
func (s *Store) ReadAll(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	defer func() { _ = resp.Body.Close() }()

	start := time.Now()
	d := s.engine.NewDigest(0)
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, d), resp.Body); err != nil {
		return nil, err
	}

	expected, ok := fullObjectChecksum(resp.ChecksumCRC32C, resp.ChecksumType)
	if !ok {
		return buf.Bytes(), nil
	}
	var verr error
	if actual := d.Sum32(); actual != expected {
		s.logger.LogMismatch(ctx, key, expected, actual)
		verr = &crc32c.ChecksumMismatchError{Name: key, Expected: expected, Actual: actual}
	}
	s.engine.Metrics().RecordVerify(buf.Len(), time.Since(start), verr)
	if verr != nil {
		return nil, verr
	}
	return buf.Bytes(), nil
}

// listObjects is a shared helper for listing S3 objects.
func listObjects(ctx context.Context, client Client, bucket, fullPrefix, rootPrefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			relPath := aws.ToString(obj.Key)
			if rootPrefix != "" {
				relPath = strings.TrimPrefix(relPath, rootPrefix)
				relPath = strings.TrimPrefix(relPath, "/")
			}
			keys = append(keys, relPath)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// openBlob is a shared helper for opening S3 blobs.
func openBlob(ctx context.Context, client Client, bucket, key string) (*blob, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}

	b := &blob{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}
	b.crc, b.hasCRC = fullObjectChecksum(head.ChecksumCRC32C, head.ChecksumType)
	return b, nil
}

// mapNotFound translates the ways S3 reports a missing key into
// blobstore.ErrNotFound.
func mapNotFound(err error) error {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return blobstore.ErrNotFound
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return blobstore.ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return blobstore.ErrNotFound
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return blobstore.ErrNotFound
	}
	return err
}
