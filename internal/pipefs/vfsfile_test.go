package pipefs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mentos/internal/vfs"
)

func TestVFSEndsRoundTrip(t *testing.T) {
	p := New()
	wfo := p.WriteEnd()
	rfo := p.ReadEnd()

	n, err := vfs.DispatchWrite(wfo, []byte("hi"), 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	buf := make([]byte, 8)
	n, err = vfs.DispatchRead(rfo, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestVFSEndsLseekIsUnsupported(t *testing.T) {
	p := New()
	_, err := vfs.DispatchLseek(p.ReadEnd(), 0, 0)
	require.Error(t, err)
}

func TestFcntlGetSetFL(t *testing.T) {
	p := New()
	wfo := p.WriteEnd()

	n, err := wfo.Fcntl(FGetFL, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = wfo.Fcntl(FSetFL, ONonBlock)
	require.NoError(t, err)

	n, err = wfo.Fcntl(FGetFL, 0)
	require.NoError(t, err)
	require.Equal(t, ONonBlock, n)
}
