package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/crc32c"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyParts is returned when a blob needs more parts than S3 allows.
var ErrTooManyParts = errors.New("s3: too many parts")

// maxParts is the S3 limit on parts per multipart upload.
const maxParts = 10000

type multipartResult struct {
	parts int
	crc   uint32
}

// putMultipart uploads data in PartSize parts, Concurrency at a time.
// Each part is checksummed once; the object checksum is the combination
// of the part checksums.
func (s *Store) putMultipart(ctx context.Context, key string, data []byte) (multipartResult, error) {
	partSize := s.upload.PartSize
	numParts := int((int64(len(data)) + partSize - 1) / partSize)
	if numParts > maxParts {
		return multipartResult{parts: numParts}, fmt.Errorf("%w: %d parts of %d bytes", ErrTooManyParts, numParts, partSize)
	}

	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if s.upload.EnableChecksum {
		createInput.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		createInput.ChecksumType = types.ChecksumTypeFullObject
	}
	created, err := s.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return multipartResult{parts: numParts}, err
	}
	uploadID := created.UploadId

	completed := make([]types.CompletedPart, numParts)
	crcs := make([]crc32c.Part, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.upload.Concurrency)
	for i := 0; i < numParts; i++ {
		off := int64(i) * partSize
		end := min(off+partSize, int64(len(data)))
		part := data[off:end]
		partNumber := int32(i + 1)

		g.Go(func() error {
			crc := s.engine.Checksum(0, part)
			input := &s3.UploadPartInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(key),
				UploadId:      uploadID,
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(part),
				ContentLength: aws.Int64(int64(len(part))),
			}
			if s.upload.EnableChecksum {
				input.ChecksumCRC32C = aws.String(EncodeChecksum(crc))
			}
			out, err := s.client.UploadPart(gctx, input)
			if err != nil {
				return fmt.Errorf("part %d: %w", partNumber, err)
			}

			completed[i] = types.CompletedPart{
				ETag:           out.ETag,
				PartNumber:     aws.Int32(partNumber),
				ChecksumCRC32C: input.ChecksumCRC32C,
			}
			crcs[i] = crc32c.Part{CRC: crc, Length: uint64(len(part))}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.abortMultipart(ctx, key, uploadID)
		return multipartResult{parts: numParts}, err
	}

	full := s.engine.CombineAll(crcs...)
	res := multipartResult{parts: numParts, crc: full.CRC}

	completeInput := &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	}
	if s.upload.EnableChecksum {
		completeInput.ChecksumCRC32C = aws.String(EncodeChecksum(full.CRC))
		completeInput.ChecksumType = types.ChecksumTypeFullObject
	}
	if _, err := s.client.CompleteMultipartUpload(ctx, completeInput); err != nil {
		s.abortMultipart(ctx, key, uploadID)
		return res, err
	}
	return res, nil
}

func (s *Store) abortMultipart(ctx context.Context, key string, uploadID *string) {
	if s.upload.LeavePartsOnError {
		return
	}
	// Abort must run even if ctx was cancelled.
	_, err := s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to abort multipart upload", "key", key, "error", err)
	}
}
