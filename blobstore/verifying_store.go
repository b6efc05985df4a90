package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/catalog"
)

// VerifyingStore wraps a BlobStore and records the CRC32C of every blob it
// writes in a catalog. Reads through the store can be checked against the
// recorded value.
type VerifyingStore struct {
	inner   BlobStore
	catalog catalog.Catalog
	engine  *crc32c.Engine
	logger  *crc32c.Logger
}

// NewVerifyingStore creates a new VerifyingStore. A nil engine uses
// crc32c.Default().
func NewVerifyingStore(inner BlobStore, cat catalog.Catalog, e *crc32c.Engine) *VerifyingStore {
	if e == nil {
		e = crc32c.Default()
	}
	return &VerifyingStore{
		inner:   inner,
		catalog: cat,
		engine:  e,
		logger:  e.Logger().WithComponent("blobstore"),
	}
}

// Catalog returns the catalog the store records into.
func (s *VerifyingStore) Catalog() catalog.Catalog {
	return s.catalog
}

// Put writes the blob and records its checksum.
func (s *VerifyingStore) Put(ctx context.Context, name string, data []byte) error {
	entry := catalog.Entry{
		Name:   name,
		CRC:    s.engine.Checksum(0, data),
		Length: uint64(len(data)),
	}
	if err := s.inner.Put(ctx, name, data); err != nil {
		return err
	}
	return s.catalog.Put(ctx, entry)
}

// Create returns a writable blob that checksums while writing and records
// the result when closed.
func (s *VerifyingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &verifyingWritableBlob{
		ctx:    ctx,
		store:  s,
		name:   name,
		inner:  w,
		digest: s.engine.NewDigest(0),
	}, nil
}

// Open opens a blob together with its catalog entry. Blobs without an
// entry fail with catalog.ErrNotFound.
func (s *VerifyingStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.OpenVerified(ctx, name)
}

// OpenVerified is like Open but returns the concrete blob type.
func (s *VerifyingStore) OpenVerified(ctx context.Context, name string) (*VerifiedBlob, error) {
	entry, err := s.catalog.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("blobstore: %s: %w", name, err)
	}
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &VerifiedBlob{Blob: b, entry: entry, store: s}, nil
}

// ReadAll reads a blob and verifies it against its catalog entry.
func (s *VerifyingStore) ReadAll(ctx context.Context, name string) ([]byte, error) {
	b, err := s.OpenVerified(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	start := time.Now()
	data, err := ReadAll(ctx, b)
	if err != nil {
		return nil, err
	}
	err = b.check(ctx, s.engine.Checksum(0, data), uint64(len(data)))
	s.engine.Metrics().RecordVerify(len(data), time.Since(start), err)
	s.logger.LogVerify(ctx, name, int64(len(data)), err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the blob and its catalog entry.
func (s *VerifyingStore) Delete(ctx context.Context, name string) error {
	if err := s.inner.Delete(ctx, name); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, name)
}

// List lists the blobs of the underlying store.
func (s *VerifyingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Compose writes the concatenation of parts to dst and records the
// checksum of dst by combining the part checksums. Every part is verified
// while it is copied, so a corrupt part fails the compose instead of
// producing a destination with a valid-looking checksum.
func (s *VerifyingStore) Compose(ctx context.Context, dst string, parts ...string) (catalog.Entry, error) {
	entries := make([]catalog.Entry, len(parts))
	for i, name := range parts {
		e, err := s.catalog.Get(ctx, name)
		if err != nil {
			return catalog.Entry{}, fmt.Errorf("blobstore: compose part %s: %w", name, err)
		}
		entries[i] = e
	}

	w, err := s.inner.Create(ctx, dst)
	if err != nil {
		return catalog.Entry{}, err
	}

	combined := make([]crc32c.Part, len(entries))
	for i, e := range entries {
		if err := s.copyPart(ctx, w, e); err != nil {
			_ = Abort(w)
			return catalog.Entry{}, err
		}
		combined[i] = e.Part()
	}
	if err := w.Close(); err != nil {
		return catalog.Entry{}, err
	}

	total := s.engine.CombineAll(combined...)
	entry := catalog.Entry{Name: dst, CRC: total.CRC, Length: total.Length}
	if err := s.catalog.Put(ctx, entry); err != nil {
		return catalog.Entry{}, err
	}
	return entry, nil
}

func (s *VerifyingStore) copyPart(ctx context.Context, w io.Writer, e catalog.Entry) error {
	b, err := s.inner.Open(ctx, e.Name)
	if err != nil {
		return fmt.Errorf("blobstore: compose part %s: %w", e.Name, err)
	}
	defer func() { _ = b.Close() }()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	d := s.engine.NewDigest(0)
	if _, err := io.Copy(io.MultiWriter(w, d), rc); err != nil {
		return err
	}
	vb := &VerifiedBlob{entry: e, store: s}
	return vb.check(ctx, d.Sum32(), d.Len())
}

// VerifiedBlob is a blob paired with its catalog entry.
type VerifiedBlob struct {
	Blob
	entry catalog.Entry
	store *VerifyingStore
}

// Entry returns the catalog entry the blob is checked against.
func (b *VerifiedBlob) Entry() catalog.Entry {
	return b.entry
}

// Verify re-reads the whole blob and compares it with the catalog entry.
func (b *VerifiedBlob) Verify(ctx context.Context) error {
	start := time.Now()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	d := b.store.engine.NewDigest(0)
	if _, err := io.Copy(d, rc); err != nil {
		return err
	}

	err = b.check(ctx, d.Sum32(), d.Len())
	b.store.engine.Metrics().RecordVerify(int(d.Len()), time.Since(start), err)
	b.store.logger.LogVerify(ctx, b.entry.Name, int64(d.Len()), err)
	return err
}

// ErrLengthMismatch is returned when a blob's length differs from its
// catalog entry.
var ErrLengthMismatch = errors.New("blobstore: length mismatch")

func (b *VerifiedBlob) check(ctx context.Context, crc uint32, length uint64) error {
	if length != b.entry.Length {
		return fmt.Errorf("%w for %s: expected %d bytes, got %d", ErrLengthMismatch, b.entry.Name, b.entry.Length, length)
	}
	if crc != b.entry.CRC {
		b.store.logger.LogMismatch(ctx, b.entry.Name, b.entry.CRC, crc)
		return &crc32c.ChecksumMismatchError{Name: b.entry.Name, Expected: b.entry.CRC, Actual: crc}
	}
	return nil
}

type verifyingWritableBlob struct {
	ctx    context.Context
	store  *VerifyingStore
	name   string
	inner  WritableBlob
	digest *crc32c.Digest
	closed bool
}

func (w *verifyingWritableBlob) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	if n > 0 {
		_, _ = w.digest.Write(p[:n])
	}
	return n, err
}

func (w *verifyingWritableBlob) Sync() error {
	return w.inner.Sync()
}

func (w *verifyingWritableBlob) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.inner.Close(); err != nil {
		return err
	}
	return w.store.catalog.Put(w.ctx, catalog.Entry{
		Name:   w.name,
		CRC:    w.digest.Sum32(),
		Length: w.digest.Len(),
	})
}

func (w *verifyingWritableBlob) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return Abort(w.inner)
}
