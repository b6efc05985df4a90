package s3

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/crc32c"
)

// newUploader creates a configured S3 uploader. The manager rejects parts
// below its minimum, so smaller PartSize values only affect Put.
func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = max(cfg.PartSize, manager.MinUploadPartSize)
		u.Concurrency = cfg.Concurrency
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// streamingWritableBlob pipes writes into the upload manager, which
// buffers them into parts and uploads those in the background.
type streamingWritableBlob struct {
	pw     *io.PipeWriter
	pr     *io.PipeReader
	store  *Store
	key    string
	digest *crc32c.Digest
	cancel context.CancelFunc

	done     chan error
	closed   atomic.Bool
	closeErr error
	closeMu  sync.Mutex
}

func newStreamingWritableBlob(ctx context.Context, store *Store, uploader *manager.Uploader, key string) *streamingWritableBlob {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)

	b := &streamingWritableBlob{
		pw:     pw,
		pr:     pr,
		store:  store,
		key:    key,
		digest: store.engine.NewDigest(0),
		cancel: cancel,
		done:   make(chan error, 1),
	}

	// Start upload in background
	go b.uploadLoop(ctx, uploader)

	return b
}

func (b *streamingWritableBlob) uploadLoop(ctx context.Context, uploader *manager.Uploader) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.store.bucket),
		Key:    aws.String(b.key),
		Body:   b.pr,
	}
	if b.store.upload.EnableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	_, err := uploader.Upload(ctx, input)

	// Close the read end with any error
	_ = b.pr.CloseWithError(err)

	b.done <- err
}

func (b *streamingWritableBlob) Write(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	n, err := b.pw.Write(p)
	if n > 0 {
		_, _ = b.digest.Write(p[:n])
	}
	return n, err
}

// Close finishes the upload and waits for it.
func (b *streamingWritableBlob) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return b.closeErr
	}
	defer b.cancel()

	// Close the write end to signal EOF to the uploader
	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}

	b.closeErr = <-b.done
	b.store.logger.LogUpload(context.Background(), b.key, int64(b.digest.Len()), 0, b.digest.Sum32(), b.closeErr)
	return b.closeErr
}

// Abort cancels the upload. The upload manager aborts a multipart upload
// it has started unless LeavePartsOnError is set.
func (b *streamingWritableBlob) Abort() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return b.closeErr
	}
	b.cancel()
	_ = b.pw.CloseWithError(context.Canceled)
	<-b.done
	b.closeErr = context.Canceled
	return nil
}

// CRC32C returns the checksum of everything written so far.
func (b *streamingWritableBlob) CRC32C() (uint32, bool) {
	return b.digest.Sum32(), true
}

// Sync is a no-op for S3 uploads - data is only committed on Close().
func (b *streamingWritableBlob) Sync() error {
	return nil
}
