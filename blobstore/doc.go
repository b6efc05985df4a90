// Package blobstore provides storage for immutable blobs with end-to-end
// CRC32C verification.
//
// BlobStore is the interface for reading and writing data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with atomic rename on write
//   - s3.Store: Amazon S3 with native CRC32C checksums and parallel uploads
//   - minio.Store: MinIO / S3-compatible storage with checksums in metadata
//
// # Verification
//
// VerifyingStore wraps any BlobStore and records the checksum and length
// of every blob it writes in a catalog.Catalog:
//
//	store := blobstore.NewVerifyingStore(blobstore.NewLocalStore(dir), catalog.NewMemoryCatalog(), engine)
//	_ = store.Put(ctx, "seg-0001", data)
//	data, err := store.ReadAll(ctx, "seg-0001") // *crc32c.ChecksumMismatchError on corruption
//
// Compose concatenates stored blobs into a new one and derives its
// checksum from the part checksums with crc32c.Engine.CombineAll.
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs whose backend keeps its own full-object CRC32C can implement
// Checksummed so callers can compare without a catalog.
package blobstore
