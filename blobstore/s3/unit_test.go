package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/blobstore"
	"github.com/hupe1980/crc32c/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChecksumEncoding(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, "4waSgw==", EncodeChecksum(0xE3069283))

	crc, ok := DecodeChecksum("4waSgw==")
	require.True(t, ok)
	assert.Equal(t, uint32(0xE3069283), crc)

	_, ok = DecodeChecksum("4waSgw==-3")
	assert.False(t, ok, "composite")
	_, ok = DecodeChecksum("")
	assert.False(t, ok)
	_, ok = DecodeChecksum("not base64!")
	assert.False(t, ok)
	_, ok = DecodeChecksum("AAAAAAAA")
	assert.False(t, ok, "wrong length")

	_, ok = fullObjectChecksum(aws.String("4waSgw=="), types.ChecksumTypeComposite)
	assert.False(t, ok)
	_, ok = fullObjectChecksum(nil, types.ChecksumTypeFullObject)
	assert.False(t, ok)
	crc, ok = fullObjectChecksum(aws.String("4waSgw=="), types.ChecksumTypeFullObject)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xE3069283), crc)
}

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/foo"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "foo")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("NotFoundAPIError", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prefix/generic"
		})).Return(nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}).Once()

		_, err := store.Open(context.Background(), "generic")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("OtherError", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDenied"}
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prefix/denied"
		})).Return(nil, denied).Once()

		_, err := store.Open(context.Background(), "denied")
		assert.ErrorIs(t, err, denied)
		assert.False(t, errors.Is(err, blobstore.ErrNotFound))
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/bar" &&
				input.ChecksumMode == types.ChecksumModeEnabled
		})).Return(&s3.HeadObjectOutput{
			ContentLength:  aws.Int64(100),
			ChecksumCRC32C: aws.String(EncodeChecksum(0xdeadbeef)),
			ChecksumType:   types.ChecksumTypeFullObject,
		}, nil).Once()

		blob, err := store.Open(context.Background(), "bar")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())

		cs, ok := blob.(blobstore.Checksummed)
		require.True(t, ok)
		crc, ok := cs.CRC32C()
		assert.True(t, ok)
		assert.Equal(t, uint32(0xdeadbeef), crc)
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	err := store.Delete(context.Background(), "del")
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return *input.Bucket == "test-bucket" && *input.Prefix == "prefix"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("prefix/file1")},
			{Key: aws.String("prefix/dir/file2")},
		},
	}, nil).Once()

	keys, err := store.List(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"dir/file2", "file1"}, keys)
}

func TestStore_List_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	// Page 1
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/1")}},
	}, nil).Once()

	// Page 2
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/2")}},
	}, nil).Once()

	keys, err := store.List(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, keys)
}

func TestStore_Put_Small(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")
	data := []byte("123456789")

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "prefix/small" &&
			aws.ToString(input.ChecksumCRC32C) == "4waSgw==" &&
			aws.ToInt64(input.ContentLength) == 9
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "small", data))
	mockClient.AssertExpectations(t)
}

func TestStore_Put_ChecksumDisabled(t *testing.T) {
	mockClient := new(MockS3Client)
	cfg := DefaultUploadConfig()
	cfg.EnableChecksum = false
	store := NewStore(mockClient, "b", "", WithUploadConfig(cfg))

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return input.ChecksumCRC32C == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "x", []byte("x")))
	mockClient.AssertExpectations(t)
}

// multipartRecorder captures uploaded parts and checks each part checksum.
type multipartRecorder struct {
	mu    sync.Mutex
	parts map[int32][]byte
}

func (r *multipartRecorder) upload(t *testing.T, e *crc32c.Engine) func(mock.Arguments) {
	return func(args mock.Arguments) {
		input := args.Get(1).(*s3.UploadPartInput)
		body, err := io.ReadAll(input.Body)
		require.NoError(t, err)

		crc, ok := DecodeChecksum(aws.ToString(input.ChecksumCRC32C))
		assert.True(t, ok)
		assert.Equal(t, e.Checksum(0, body), crc, "part %d", *input.PartNumber)

		r.mu.Lock()
		r.parts[*input.PartNumber] = body
		r.mu.Unlock()
	}
}

func TestStore_Put_Multipart(t *testing.T) {
	e := crc32c.MustNew()
	mockClient := new(MockS3Client)
	cfg := DefaultUploadConfig()
	cfg.PartSize = 1000
	cfg.Concurrency = 3
	store := NewStore(mockClient, "test-bucket", "prefix", WithEngine(e), WithUploadConfig(cfg))

	data := testutil.NewRNG(31).Bytes(4500)
	want := EncodeChecksum(e.Checksum(0, data))
	rec := &multipartRecorder{parts: make(map[int32][]byte)}

	mockClient.On("CreateMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.CreateMultipartUploadInput) bool {
		return *input.Key == "prefix/big" &&
			input.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c &&
			input.ChecksumType == types.ChecksumTypeFullObject
	})).Return(&s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil).Once()

	mockClient.On("UploadPart", mock.Anything, mock.MatchedBy(func(input *s3.UploadPartInput) bool {
		return aws.ToString(input.UploadId) == "upload-1"
	})).Run(rec.upload(t, e)).Return(&s3.UploadPartOutput{ETag: aws.String("etag")}, nil).Times(5)

	mockClient.On("CompleteMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.CompleteMultipartUploadInput) bool {
		if aws.ToString(input.ChecksumCRC32C) != want || input.ChecksumType != types.ChecksumTypeFullObject {
			return false
		}
		parts := input.MultipartUpload.Parts
		if len(parts) != 5 {
			return false
		}
		return sort.SliceIsSorted(parts, func(i, j int) bool { return *parts[i].PartNumber < *parts[j].PartNumber }) &&
			*parts[0].PartNumber == 1
	})).Return(&s3.CompleteMultipartUploadOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "big", data))
	mockClient.AssertExpectations(t)

	// Parts concatenate back to the data.
	var got bytes.Buffer
	for i := int32(1); i <= 5; i++ {
		got.Write(rec.parts[i])
	}
	assert.Equal(t, data, got.Bytes())
	assert.Len(t, rec.parts[5], 500)
}

func TestStore_Put_MultipartAbortsOnError(t *testing.T) {
	mockClient := new(MockS3Client)
	cfg := DefaultUploadConfig()
	cfg.PartSize = 10
	cfg.Concurrency = 1
	store := NewStore(mockClient, "b", "", WithUploadConfig(cfg))

	mockClient.On("CreateMultipartUpload", mock.Anything, mock.Anything).
		Return(&s3.CreateMultipartUploadOutput{UploadId: aws.String("u")}, nil).Once()
	mockClient.On("UploadPart", mock.Anything, mock.Anything).
		Return(nil, errors.New("network down"))
	mockClient.On("AbortMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.AbortMultipartUploadInput) bool {
		return aws.ToString(input.UploadId) == "u"
	})).Return(&s3.AbortMultipartUploadOutput{}, nil).Once()

	err := store.Put(context.Background(), "big", make([]byte, 35))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "CompleteMultipartUpload", mock.Anything, mock.Anything)
}

func TestStore_Put_TooManyParts(t *testing.T) {
	cfg := DefaultUploadConfig()
	cfg.PartSize = 1
	store := NewStore(new(MockS3Client), "b", "", WithUploadConfig(cfg))

	err := store.Put(context.Background(), "x", make([]byte, maxParts+1))
	assert.ErrorIs(t, err, ErrTooManyParts)
}

func TestStore_ReadAll(t *testing.T) {
	e := crc32c.MustNew()
	data := []byte("hello, verified world")

	newStoreWith := func(body []byte, checksum *string, typ types.ChecksumType) *Store {
		mockClient := new(MockS3Client)
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Key == "p/obj" && input.ChecksumMode == types.ChecksumModeEnabled
		})).Return(&s3.GetObjectOutput{
			Body:           io.NopCloser(bytes.NewReader(body)),
			ChecksumCRC32C: checksum,
			ChecksumType:   typ,
		}, nil).Once()
		return NewStore(mockClient, "b", "p", WithEngine(e))
	}

	t.Run("Match", func(t *testing.T) {
		s := newStoreWith(data, aws.String(EncodeChecksum(e.Checksum(0, data))), types.ChecksumTypeFullObject)
		got, err := s.ReadAll(context.Background(), "obj")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("Mismatch", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[3] ^= 0x20
		s := newStoreWith(corrupt, aws.String(EncodeChecksum(e.Checksum(0, data))), types.ChecksumTypeFullObject)
		_, err := s.ReadAll(context.Background(), "obj")
		assert.True(t, crc32c.IsChecksumMismatch(err))
	})

	t.Run("Composite", func(t *testing.T) {
		s := newStoreWith(data, aws.String("AAAAAA==-2"), types.ChecksumTypeComposite)
		got, err := s.ReadAll(context.Background(), "obj")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()
		_, err := NewStore(mockClient, "b", "").ReadAll(context.Background(), "missing")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestBlob_ReadAt(t *testing.T) {
	mockClient := new(MockS3Client)
	b := &blob{
		client: mockClient,
		bucket: "b",
		key:    "k",
		size:   10,
	}

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "b" && *input.Key == "k" && *input.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("hello")),
	}, nil).Once()

	buf := make([]byte, 5)
	n, err := b.ReadAt(context.Background(), buf, 0)
	assert.Equal(t, 5, n)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	// Tail read past the end
	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Range == "bytes=8-9"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("ld")),
	}, nil).Once()

	n, err = b.ReadAt(context.Background(), buf, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ld", string(buf[:n]))

	n, err = b.ReadAt(context.Background(), buf, 10)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBlob_ReadRange(t *testing.T) {
	mockClient := new(MockS3Client)
	b := &blob{
		client: mockClient,
		bucket: "b",
		key:    "k",
		size:   10,
	}

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "b" && *input.Key == "k" && *input.Range == "bytes=2-6"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("llo W")),
	}, nil).Once()

	r, err := b.ReadRange(context.Background(), 2, 5)
	require.NoError(t, err)
	defer r.Close()

	buf, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "llo W", string(buf))

	// Empty ranges never hit S3.
	r, err = b.ReadRange(context.Background(), 10, 5)
	require.NoError(t, err)
	buf, err = io.ReadAll(r)
	assert.NoError(t, err)
	assert.Empty(t, buf)
}

func TestStore_Create(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	var uploaded []byte
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/new" &&
			input.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Run(func(args mock.Arguments) {
		input := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(input.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	wb, err := store.Create(context.Background(), "new")
	require.NoError(t, err)

	_, err = wb.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	assert.Equal(t, "content", string(uploaded))

	cs, ok := wb.(blobstore.Checksummed)
	require.True(t, ok)
	crc, _ := cs.CRC32C()
	assert.Equal(t, crc32c.Checksum(0, []byte("content")), crc)

	// Close is idempotent.
	assert.NoError(t, wb.Close())
	_, err = wb.Write([]byte("more"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestExpressStore_PutIfNotExists(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewExpressStore(mockClient, "bucket--use1-az4--x-s3", "")

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "new" && aws.ToString(input.IfNoneMatch) == "*" &&
			aws.ToString(input.ChecksumCRC32C) == "4waSgw=="
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	require.NoError(t, store.PutIfNotExists(context.Background(), "new", []byte("123456789")))

	for _, code := range []string{"PreconditionFailed", "ConditionalRequestConflict"} {
		mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
			return *input.Key == "exists-"+code
		})).Return(nil, &smithy.GenericAPIError{Code: code}).Once()

		err := store.PutIfNotExists(context.Background(), "exists-"+code, []byte("x"))
		assert.ErrorIs(t, err, ErrConflict, code)
	}

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "boom"
	})).Return(nil, fmt.Errorf("boom")).Once()
	err := store.PutIfNotExists(context.Background(), "boom", []byte("x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))

	mockClient.AssertExpectations(t)
}
