package ata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mentos/internal/vfs"
)

func TestFileOperationsWiresReadWriteStat(t *testing.T) {
	_, dev := primaryMasterPATA(4)
	fo := dev.FileOperations()

	pattern := make([]byte, SectorSize)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	n, err := vfs.DispatchWrite(fo, pattern, 0)
	require.NoError(t, err)
	require.Equal(t, SectorSize, n)

	readBack := make([]byte, SectorSize)
	n, err = vfs.DispatchRead(fo, readBack, 0)
	require.NoError(t, err)
	require.Equal(t, SectorSize, n)
	require.Equal(t, pattern, readBack)

	st, err := vfs.DispatchStat(fo)
	require.NoError(t, err)
	require.Equal(t, int64(4*SectorSize), st.Size)
	require.Equal(t, uint32(vfs.ModeBlk), st.Mode&uint32(vfs.ModeBlk))
}

func TestRegisterOnAllocatesDevName(t *testing.T) {
	_, dev := primaryMasterPATA(4)
	r := vfs.NewRegistry()
	name, err := dev.RegisterOn(r)
	require.NoError(t, err)
	require.Equal(t, "hda", name)

	blk, err := r.Lookup(name)
	require.NoError(t, err)
	require.NotNil(t, blk.Ops.Read)
}
