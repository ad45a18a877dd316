package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mentos/internal/kerr"
)

func TestDispatchUnsupportedYieldsNotSupported(t *testing.T) {
	fo := &FileOperations{}
	_, err := DispatchRead(fo, make([]byte, 4), 0)
	require.Error(t, err)
	require.Equal(t, kerr.NotSupported("x").(*kerr.Errno).Code(), err.(*kerr.Errno).Code())

	_, err = DispatchLseek(fo, 0, 0)
	require.Error(t, err)
}

func TestDispatchReadWired(t *testing.T) {
	fo := &FileOperations{
		Read: func(buf []byte, offset int64) (int, error) {
			copy(buf, "ok")
			return 2, nil
		},
	}
	buf := make([]byte, 4)
	n, err := DispatchRead(fo, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "ok", string(buf[:n]))
}

func TestRegisterDiskAllocatesMonotonicLetters(t *testing.T) {
	r := NewRegistry()
	name1, err := r.RegisterDisk(&FileOperations{})
	require.NoError(t, err)
	require.Equal(t, "hda", name1)

	name2, err := r.RegisterDisk(&FileOperations{})
	require.NoError(t, err)
	require.Equal(t, "hdb", name2)

	d, err := r.Lookup("hda")
	require.NoError(t, err)
	require.Equal(t, "hda", d.Name)
}

func TestLookupMissingIsENOENT(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("hdz")
	require.Error(t, err)
	require.Equal(t, kerr.NoEntry("x").(*kerr.Errno).Code(), err.(*kerr.Errno).Code())
}

func TestGetUnusedFDMonotonic(t *testing.T) {
	r := NewRegistry()
	a := r.GetUnusedFD()
	b := r.GetUnusedFD()
	require.Equal(t, a+1, b)
	require.GreaterOrEqual(t, a, 3)
}

func TestDispatchUnsupportedCoversEveryMember(t *testing.T) {
	fo := &FileOperations{}
	_, err := DispatchWrite(fo, nil, 0)
	require.Error(t, err)
	_, err = DispatchStat(fo)
	require.Error(t, err)
	err = DispatchOpen(fo, 0, 0)
	require.Error(t, err)
	err = DispatchClose(fo)
	require.Error(t, err)
	err = DispatchUnlink(fo)
	require.Error(t, err)
	err = DispatchIoctl(fo, 0, 0)
	require.Error(t, err)
	_, err = DispatchFcntl(fo, 0, 0)
	require.Error(t, err)
	_, err = DispatchGetdents(fo, nil)
	require.Error(t, err)
	_, err = DispatchReadlink(fo, nil)
	require.Error(t, err)

	so := &SysOperations{}
	err = DispatchSysMkdir(so, "x", 0)
	require.Error(t, err)
	_, err = DispatchSysStat(so, "x")
	require.Error(t, err)
	err = DispatchSysCreat(so, "x", 0)
	require.Error(t, err)
}

func TestDispatchWiredMembersPassThrough(t *testing.T) {
	var opened bool
	var closed bool
	var ioctlCmd int
	fo := &FileOperations{
		Open:  func(flags, mode int) error { opened = true; return nil },
		Close: func() error { closed = true; return nil },
		Ioctl: func(cmd int, arg uintptr) error { ioctlCmd = cmd; return nil },
		Fcntl: func(cmd int, arg uintptr) (int, error) { return int(arg), nil },
	}

	require.NoError(t, DispatchOpen(fo, 0, 0))
	require.True(t, opened)
	require.NoError(t, DispatchClose(fo))
	require.True(t, closed)
	require.NoError(t, DispatchIoctl(fo, 7, 0))
	require.Equal(t, 7, ioctlCmd)
	n, err := DispatchFcntl(fo, 0, 9)
	require.NoError(t, err)
	require.Equal(t, 9, n)
}

func TestFileRefCounting(t *testing.T) {
	f := &File{Name: "p"}
	f.Ref()
	f.Ref()
	require.Equal(t, 1, f.Unref())
	require.Equal(t, 0, f.Unref())
	require.Equal(t, 0, f.Unref(), "unref below zero stays at zero")
}
