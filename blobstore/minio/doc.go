// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is a high-performance, S3-compatible object storage system. This package
// uses the official MinIO Go client library for compatibility with MinIO
// and other S3-compatible storage systems like Ceph, SeaweedFS, and Garage.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "segments/", engine)
//	data, err := store.ReadAll(ctx, "seg-0001") // verified against metadata
//
// # Checksums
//
// Not every S3-compatible backend validates x-amz-checksum headers, so the
// store keeps the object CRC32C in user metadata (X-Amz-Meta-Crc32c) and
// verifies it client side in ReadAll. Open exposes it through
// blobstore.Checksummed.
package minio
