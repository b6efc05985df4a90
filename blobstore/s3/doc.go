// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface with native CRC32C object checksums.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("segments/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// # Checksums
//
// Every write sends a CRC32C checksum that S3 validates on receipt:
//
//   - Put of a small blob sends ChecksumCRC32C with a single PutObject.
//   - Put of a large blob runs a parallel multipart upload. Each part carries
//     its own CRC32C, and the FULL_OBJECT checksum of the whole blob is
//     derived from the part checksums with crc32c.Engine.CombineAll, so the
//     data is hashed once.
//   - Create streams through the SDK upload manager with ChecksumAlgorithm
//     CRC32C.
//
// Open and ReadAll request checksum mode, and blobs expose the stored
// full-object CRC32C through blobstore.Checksummed.
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - ExpressStore for S3 Express One Zone directory buckets
package s3
