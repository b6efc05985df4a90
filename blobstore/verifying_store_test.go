package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/catalog"
	"github.com/hupe1980/crc32c/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifyingStore(t *testing.T) (*VerifyingStore, *MemoryStore, *crc32c.BasicMetricsCollector) {
	t.Helper()
	metrics := &crc32c.BasicMetricsCollector{}
	e, err := crc32c.New(crc32c.WithMetricsCollector(metrics))
	require.NoError(t, err)
	mem := NewMemoryStore()
	return NewVerifyingStore(mem, catalog.NewMemoryCatalog(), e), mem, metrics
}

func TestVerifyingStore_PutReadAll(t *testing.T) {
	ctx := context.Background()
	store, _, metrics := newTestVerifyingStore(t)
	data := testutil.NewRNG(21).Bytes(5000)

	require.NoError(t, store.Put(ctx, "blob", data))

	entry, err := store.Catalog().Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, crc32c.Checksum(0, data), entry.CRC)
	assert.Equal(t, uint64(len(data)), entry.Length)

	got, err := store.ReadAll(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.VerifyCount)
	assert.Equal(t, int64(0), stats.VerifyMismatches)
}

func TestVerifyingStore_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store, mem, metrics := newTestVerifyingStore(t)
	data := testutil.NewRNG(22).Bytes(4096)
	require.NoError(t, store.Put(ctx, "blob", data))

	require.True(t, mem.Corrupt("blob", 1234, 3))

	_, err := store.ReadAll(ctx, "blob")
	require.Error(t, err)
	assert.True(t, crc32c.IsChecksumMismatch(err))
	assert.True(t, errors.Is(err, crc32c.ErrChecksumMismatch))

	var mm *crc32c.ChecksumMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, "blob", mm.Name)

	b, err := store.OpenVerified(ctx, "blob")
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, crc32c.IsChecksumMismatch(b.Verify(ctx)))

	assert.Equal(t, int64(2), metrics.GetStats().VerifyMismatches)
}

func TestVerifyingStore_LengthMismatch(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestVerifyingStore(t)
	require.NoError(t, store.Put(ctx, "blob", []byte("abc")))

	// Replace behind the store's back.
	require.NoError(t, mem.Put(ctx, "blob", []byte("abcd")))

	_, err := store.ReadAll(ctx, "blob")
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestVerifyingStore_Create(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVerifyingStore(t)
	rng := testutil.NewRNG(23)
	data := rng.Bytes(100_000)

	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	for _, chunk := range rng.Chunks(data, 4096) {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "streamed")
	require.NoError(t, err)
	vb := b.(*VerifiedBlob)
	assert.Equal(t, crc32c.Checksum(0, data), vb.Entry().CRC)
	require.NoError(t, vb.Verify(ctx))
	require.NoError(t, b.Close())

	// An aborted write records nothing.
	w, err = store.Create(ctx, "aborted")
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, Abort(w))
	_, err = store.Catalog().Get(ctx, "aborted")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestVerifyingStore_OpenWithoutEntry(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestVerifyingStore(t)
	require.NoError(t, mem.Put(ctx, "untracked", []byte("x")))

	_, err := store.Open(ctx, "untracked")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestVerifyingStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVerifyingStore(t)
	require.NoError(t, store.Put(ctx, "blob", []byte("x")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"blob"}, names)

	require.NoError(t, store.Delete(ctx, "blob"))
	_, err = store.Catalog().Get(ctx, "blob")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestVerifyingStore_Compose(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestVerifyingStore(t)
	rng := testutil.NewRNG(24)

	var want bytes.Buffer
	var parts []string
	for i, size := range []int{0, 1, 777, 65536, 3} {
		name := "part-" + string(rune('a'+i))
		data := rng.Bytes(size)
		require.NoError(t, store.Put(ctx, name, data))
		want.Write(data)
		parts = append(parts, name)
	}

	entry, err := store.Compose(ctx, "composed", parts...)
	require.NoError(t, err)
	assert.Equal(t, crc32c.Checksum(0, want.Bytes()), entry.CRC)
	assert.Equal(t, uint64(want.Len()), entry.Length)

	got, err := store.ReadAll(ctx, "composed")
	require.NoError(t, err)
	assert.Equal(t, want.Bytes(), got)
}

func TestVerifyingStore_ComposeCorruptPart(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestVerifyingStore(t)
	require.NoError(t, store.Put(ctx, "p1", []byte("first part")))
	require.NoError(t, store.Put(ctx, "p2", []byte("second part")))
	require.True(t, mem.Corrupt("p2", 0, 0))

	_, err := store.Compose(ctx, "composed", "p1", "p2")
	assert.True(t, crc32c.IsChecksumMismatch(err))

	_, err = mem.Open(ctx, "composed")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Catalog().Get(ctx, "composed")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = store.Compose(ctx, "composed", "p1", "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
