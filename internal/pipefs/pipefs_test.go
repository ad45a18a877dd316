package pipefs

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mentos/internal/kerr"
)

func TestRoundTrip(t *testing.T) {
	p := New()
	n, err := p.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

// TestBackpressure reproduces spec §8 scenario 3 verbatim: write 5 *
// BufSize bytes of 0x41 fully; a sixth write of 1 byte (non-blocking)
// returns EAGAIN; read 64 bytes returns 64 bytes of 0x41; the next
// non-blocking write of 64 bytes then succeeds.
func TestBackpressure(t *testing.T) {
	p := New()
	p.SetNonBlocking(true, true)

	full := bytes.Repeat([]byte{0x41}, NumBufs*BufSize)
	n, err := p.Write(full)
	require.NoError(t, err)
	require.Equal(t, NumBufs*BufSize, n)

	_, err = p.Write([]byte{0x41})
	require.Error(t, err)
	require.Equal(t, kerr.TryAgain("x").(*kerr.Errno).Code(), err.(*kerr.Errno).Code())

	readBuf := make([]byte, 64)
	n, err = p.Read(readBuf)
	require.NoError(t, err)
	require.Equal(t, 64, n)
	require.True(t, bytes.Equal(readBuf, bytes.Repeat([]byte{0x41}, 64)))

	n, err = p.Write(bytes.Repeat([]byte{0x41}, 64))
	require.NoError(t, err)
	require.Equal(t, 64, n)
}

// TestEOF reproduces spec §8 scenario 4 verbatim: write "hi", close the
// write end, then a read of 8 bytes returns exactly 2 bytes "hi" and the
// next read returns 0 (EOF).
func TestEOF(t *testing.T) {
	p := New()
	_, err := p.Write([]byte("hi"))
	require.NoError(t, err)
	p.CloseWrite()

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(buf[:n]))

	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestBlockingReadUnblocksOnWrite(t *testing.T) {
	p := New()

	var wg sync.WaitGroup
	wg.Add(1)
	var got string
	go func() {
		defer wg.Done()
		buf := make([]byte, 5)
		n, err := p.Read(buf)
		require.NoError(t, err)
		got = string(buf[:n])
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := p.Write([]byte("hello"))
	require.NoError(t, err)

	wg.Wait()
	require.Equal(t, "hello", got)
}

func TestBlockingWriteUnblocksOnRead(t *testing.T) {
	p := New()
	full := bytes.Repeat([]byte{0x42}, NumBufs*BufSize)
	n, err := p.Write(full)
	require.NoError(t, err)
	require.Equal(t, len(full), n)

	var wg sync.WaitGroup
	wg.Add(1)
	writeErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		_, err := p.Write([]byte{0x43})
		writeErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	// A single buffer's capacity only reopens once fully drained (the
	// offset only resets to 0 at length==0, per the per-buffer accounting
	// in spec §4.6) — read the whole first BufSize-byte buffer, not just
	// one byte, to actually free room for the blocked writer.
	buf := make([]byte, BufSize)
	_, err = p.Read(buf)
	require.NoError(t, err)

	wg.Wait()
	require.NoError(t, <-writeErr)
}

func TestWriteWithNoReadersFails(t *testing.T) {
	p := New()
	full := bytes.Repeat([]byte{0x44}, NumBufs*BufSize)
	_, err := p.Write(full)
	require.NoError(t, err)

	p.CloseRead()
	_, err = p.Write([]byte{0x45})
	require.Error(t, err)
}
