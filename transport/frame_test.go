package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	e := crc32c.MustNew()
	rng := testutil.NewRNG(11)

	payloads := [][]byte{{}, []byte("hello"), rng.Bytes(1), rng.Bytes(70_000)}

	var buf bytes.Buffer
	fw := NewFrameWriter(e, &buf)
	for _, p := range payloads {
		require.NoError(t, fw.WriteFrame(p))
	}

	frames, n := fw.Stats()
	assert.Equal(t, uint64(len(payloads)), frames)
	assert.Equal(t, uint64(buf.Len()), n)

	fr := NewFrameReader(e, &buf, 0)
	for _, want := range payloads {
		got, err := fr.ReadFrame()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got))
	}

	_, err := fr.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameLayout(t *testing.T) {
	e := crc32c.MustNew()
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(e, &buf).WriteFrame([]byte("123456789")))

	b := buf.Bytes()
	require.Len(t, b, 4+9+4)
	assert.Equal(t, []byte{9, 0, 0, 0}, b[:4])
	assert.Equal(t, []byte("123456789"), b[4:13])

	trailer := uint32(b[13]) | uint32(b[14])<<8 | uint32(b[15])<<16 | uint32(b[16])<<24
	assert.Equal(t, uint32(0xE3069283), crc32c.Unmask(trailer))
}

func TestReadFrame_Corrupt(t *testing.T) {
	e := crc32c.MustNew()
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(e, &buf).WriteFrame([]byte("some payload")))

	for _, pos := range []int{4, 10, buf.Len() - 1} {
		b := append([]byte(nil), buf.Bytes()...)
		b[pos] ^= 0x04

		_, err := NewFrameReader(e, bytes.NewReader(b), 0).ReadFrame()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorruptFrame)
		assert.True(t, crc32c.IsChecksumMismatch(err))
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	e := crc32c.MustNew()
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(e, &buf).WriteFrame(make([]byte, 100)))

	_, err := NewFrameReader(e, &buf, 99).ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrame_Truncated(t *testing.T) {
	e := crc32c.MustNew()
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(e, &buf).WriteFrame([]byte("truncate me")))
	full := buf.Bytes()

	for _, n := range []int{1, 3, 4, 8, len(full) - 1} {
		_, err := NewFrameReader(e, bytes.NewReader(full[:n]), 0).ReadFrame()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "n=%d", n)
	}
}

func TestFrames_OverPipe(t *testing.T) {
	e := crc32c.MustNew()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	rng := testutil.NewRNG(12)
	const numWriters = 4
	const perWriter = 25

	payloads := make([][]byte, numWriters*perWriter)
	for i := range payloads {
		payloads[i] = rng.Bytes(rng.Intn(4096))
	}

	fw := NewFrameWriter(e, client)
	var wg sync.WaitGroup
	for w := 0; w < numWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := fw.WriteFrame(payloads[w*perWriter+i]); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	go func() {
		wg.Wait()
		_ = client.Close()
	}()

	want := make(map[uint32]int)
	for _, p := range payloads {
		want[e.Checksum(0, p)]++
	}

	fr := NewFrameReader(e, server, 0)
	got := make(map[uint32]int)
	for {
		p, err := fr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got[e.Checksum(0, p)]++
	}
	assert.Equal(t, want, got)
}
