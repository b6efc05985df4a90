// Package scrub re-reads stored blobs in the background and checks them
// against the CRC32C values recorded in a catalog.
//
// A pass walks the catalog in name order. Each entry gets an index into
// that order; the indices of corrupt or missing blobs are collected in a
// roaring bitmap so callers can intersect passes cheaply.
package scrub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/blobstore"
	"github.com/hupe1980/crc32c/catalog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config holds scrubber limits.
type Config struct {
	// Prefix restricts the pass to catalog entries with this name prefix.
	Prefix string

	// Concurrency is the number of blobs verified at once.
	// If 0, defaults to 1.
	Concurrency int

	// BytesPerSec caps the read throughput of a pass.
	// If 0, unlimited.
	BytesPerSec int64

	// ChunkSize is the read buffer size per worker.
	ChunkSize int
}

// DefaultConfig returns a configuration suitable for a background pass.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		BytesPerSec: 64 << 20,
		ChunkSize:   1 << 20,
	}
}

// Report summarizes one pass.
type Report struct {
	// Scanned is the number of catalog entries checked.
	Scanned int
	// Corrupt is the number of entries whose blob failed verification or
	// was missing.
	Corrupt int
	// Bytes is the number of blob bytes read.
	Bytes uint64
	// CorruptSet holds the catalog indices of the corrupt entries.
	CorruptSet *roaring.Bitmap
	// Names lists the corrupt entries in catalog order.
	Names []string
	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Scrubber verifies blobs of a store against a catalog.
type Scrubber struct {
	store   blobstore.BlobStore
	catalog catalog.Catalog
	engine  *crc32c.Engine
	cfg     Config
	limiter *rate.Limiter // nil if unlimited
	logger  *crc32c.Logger
}

// New creates a new Scrubber. A nil engine uses crc32c.Default().
func New(store blobstore.BlobStore, cat catalog.Catalog, e *crc32c.Engine, cfg Config) *Scrubber {
	if e == nil {
		e = crc32c.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}

	s := &Scrubber{
		store:   store,
		catalog: cat,
		engine:  e,
		cfg:     cfg,
		logger:  e.Logger().WithComponent("scrub"),
	}

	if cfg.BytesPerSec > 0 {
		// WaitN rejects requests larger than the burst.
		burst := max(int(cfg.BytesPerSec), cfg.ChunkSize)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), burst)
	}

	return s
}

// Run performs one pass over the catalog.
//
// Checksum mismatches, length mismatches and missing blobs are recorded
// in the report and do not stop the pass. Any other error, including
// context cancellation, aborts it.
func (s *Scrubber) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	entries, err := s.catalog.List(ctx, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("scrub: list catalog: %w", err)
	}

	var (
		mu     sync.Mutex
		report = &Report{CorruptSet: roaring.New()}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			buf := make([]byte, s.cfg.ChunkSize)
			n, err := s.check(gctx, entry, buf)

			mu.Lock()
			defer mu.Unlock()
			report.Bytes += n

			switch {
			case err == nil:
			case isCorrupt(err):
				report.CorruptSet.Add(uint32(i))
			default:
				return fmt.Errorf("scrub: %s: %w", entry.Name, err)
			}
			report.Scanned++
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report.Corrupt = int(report.CorruptSet.GetCardinality())
	it := report.CorruptSet.Iterator()
	for it.HasNext() {
		report.Names = append(report.Names, entries[it.Next()].Name)
	}
	report.Duration = time.Since(start)

	s.engine.Metrics().RecordScrub(report.Scanned, report.Corrupt, report.Duration)
	s.logger.LogScrub(ctx, report.Scanned, report.Corrupt, err)

	return report, err
}

// Check verifies a single blob against its catalog entry.
func (s *Scrubber) Check(ctx context.Context, name string) error {
	entry, err := s.catalog.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("scrub: %s: %w", name, err)
	}
	_, err = s.check(ctx, entry, make([]byte, s.cfg.ChunkSize))
	return err
}

func (s *Scrubber) check(ctx context.Context, entry catalog.Entry, buf []byte) (uint64, error) {
	start := time.Now()

	b, err := s.store.Open(ctx, entry.Name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.logger.WarnContext(ctx, "blob missing", "name", entry.Name)
		}
		return 0, err
	}
	defer func() { _ = b.Close() }()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	d := s.engine.NewDigest(0)
	if _, err := io.CopyBuffer(d, &throttledReader{ctx: ctx, r: rc, limiter: s.limiter}, buf); err != nil {
		return d.Len(), err
	}

	err = s.compare(ctx, entry, d.Part())
	s.engine.Metrics().RecordVerify(int(d.Len()), time.Since(start), err)
	return d.Len(), err
}

func (s *Scrubber) compare(ctx context.Context, entry catalog.Entry, got crc32c.Part) error {
	if got.Length != entry.Length {
		s.logger.WarnContext(ctx, "blob length differs from catalog",
			"name", entry.Name,
			"expected", entry.Length,
			"actual", got.Length,
		)
		return fmt.Errorf("%w for %s: expected %d bytes, got %d", blobstore.ErrLengthMismatch, entry.Name, entry.Length, got.Length)
	}
	if got.CRC != entry.CRC {
		s.logger.LogMismatch(ctx, entry.Name, entry.CRC, got.CRC)
		return &crc32c.ChecksumMismatchError{Name: entry.Name, Expected: entry.CRC, Actual: got.CRC}
	}
	return nil
}

func isCorrupt(err error) bool {
	return crc32c.IsChecksumMismatch(err) ||
		errors.Is(err, blobstore.ErrLengthMismatch) ||
		errors.Is(err, blobstore.ErrNotFound)
}

// throttledReader charges every read against the limiter.
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 && t.limiter != nil {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
