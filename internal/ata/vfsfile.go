package ata

import (
	"mentos/internal/vfs"
)

// FileOperations adapts d to the vfs.FileOperations capability set, per
// §4.7's "exposed as a VFS block file": read/write delegate straight to
// ReadAt/WriteAt, stat reports the device's total byte size, and every
// other member is left nil, which vfs.Dispatch* turns into
// ENOSYS at call time rather than letting a caller assume capabilities
// this driver doesn't offer.
func (d *Device) FileOperations() *vfs.FileOperations {
	return &vfs.FileOperations{
		Read: func(buf []byte, offset int64) (int, error) {
			return d.ReadAt(buf, offset)
		},
		Write: func(buf []byte, offset int64) (int, error) {
			return d.WriteAt(buf, offset)
		},
		Stat: func() (vfs.Stat, error) {
			return vfs.Stat{
				Mode: vfs.ModeBlk | vfs.ModePerm&0o660,
				Size: int64(d.maxOffset()),
			}, nil
		},
	}
}

// RegisterOn exposes d under the next monotonic /dev/hd letter in r,
// returning the allocated name ("hda", "hdb", ...).
func (d *Device) RegisterOn(r *vfs.Registry) (string, error) {
	return r.RegisterDisk(d.FileOperations())
}
