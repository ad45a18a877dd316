// Package vfs implements the minimal file/superblock contract of spec
// §4.8: the thin adapter surface C6 (pipefs) and C7 (ata) attach to; C5
// (msgqueue) has no file operations of its own and does not use this
// package. There is no real filesystem tree here — just the stat
// structure, the file-operations/sys-operations capability sets, and a
// device registry for /dev/hd{a,b,...}-style block files.
package vfs

import (
	"sync"

	"mentos/internal/kerr"
)

// Mode bits, the subset spec §4.8's stat structure cares about.
const (
	ModeDir   = 0o040000
	ModeChr   = 0o020000
	ModeBlk   = 0o060000
	ModeReg   = 0o100000
	ModeFifo  = 0o010000
	ModePerm  = 0o777
)

// Stat is the minimal stat structure spec §4.8 names.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	UID   int
	GID   int
	Atime int64
	Mtime int64
	Ctime int64
	Size  int64
}

// FileOperations is the capability set a concrete file backend
// implements. A backend that doesn't support a member leaves it nil;
// Dispatch* helpers below turn a nil member into -ENOSYS at call
// time rather than letting callers nil-deref, per §9's vtable rule
// ("members not supported by a particular implementation MUST surface as
// 'not supported'").
type FileOperations struct {
	Open    func(flags int, mode int) error
	Unlink  func() error
	Close   func() error
	Read    func(buf []byte, offset int64) (int, error)
	Write   func(buf []byte, offset int64) (int, error)
	Lseek   func(offset int64, whence int) (int64, error)
	Stat    func() (Stat, error)
	Ioctl   func(cmd int, arg uintptr) error
	Fcntl   func(cmd int, arg uintptr) (int, error)
	Getdents func(buf []byte) (int, error)
	Readlink func(buf []byte) (int, error)
}

// SysOperations is the superblock-level capability set (§4.8).
type SysOperations struct {
	Mkdir   func(name string, mode int) error
	Rmdir   func(name string) error
	Stat    func(name string) (Stat, error)
	Creat   func(name string, mode int) error
	Symlink func(target, linkpath string) error
	Setattr func(name string, st Stat) error
}

func unsupported(op string) error { return kerr.NotSupported(op) }

// DispatchRead calls fo.Read, or returns ENOSYS if the backend doesn't
// implement reading.
func DispatchRead(fo *FileOperations, buf []byte, offset int64) (int, error) {
	if fo.Read == nil {
		return 0, unsupported("read")
	}
	return fo.Read(buf, offset)
}

// DispatchWrite calls fo.Write, or returns ENOSYS.
func DispatchWrite(fo *FileOperations, buf []byte, offset int64) (int, error) {
	if fo.Write == nil {
		return 0, unsupported("write")
	}
	return fo.Write(buf, offset)
}

// DispatchStat calls fo.Stat, or returns ENOSYS.
func DispatchStat(fo *FileOperations) (Stat, error) {
	if fo.Stat == nil {
		return Stat{}, unsupported("stat")
	}
	return fo.Stat()
}

// DispatchLseek calls fo.Lseek, or returns ENOSYS (both pipe ends leave
// this nil: spec §4.6 says lseek on a pipe always fails).
func DispatchLseek(fo *FileOperations, offset int64, whence int) (int64, error) {
	if fo.Lseek == nil {
		return 0, unsupported("lseek")
	}
	return fo.Lseek(offset, whence)
}

// DispatchOpen calls fo.Open, or returns ENOSYS.
func DispatchOpen(fo *FileOperations, flags, mode int) error {
	if fo.Open == nil {
		return unsupported("open")
	}
	return fo.Open(flags, mode)
}

// DispatchClose calls fo.Close, or returns ENOSYS.
func DispatchClose(fo *FileOperations) error {
	if fo.Close == nil {
		return unsupported("close")
	}
	return fo.Close()
}

// DispatchUnlink calls fo.Unlink, or returns ENOSYS.
func DispatchUnlink(fo *FileOperations) error {
	if fo.Unlink == nil {
		return unsupported("unlink")
	}
	return fo.Unlink()
}

// DispatchIoctl calls fo.Ioctl, or returns ENOSYS.
func DispatchIoctl(fo *FileOperations, cmd int, arg uintptr) error {
	if fo.Ioctl == nil {
		return unsupported("ioctl")
	}
	return fo.Ioctl(cmd, arg)
}

// DispatchFcntl calls fo.Fcntl, or returns ENOSYS.
func DispatchFcntl(fo *FileOperations, cmd int, arg uintptr) (int, error) {
	if fo.Fcntl == nil {
		return 0, unsupported("fcntl")
	}
	return fo.Fcntl(cmd, arg)
}

// DispatchGetdents calls fo.Getdents, or returns ENOSYS (only directory
// backends implement this; none of C5/C6/C7 do).
func DispatchGetdents(fo *FileOperations, buf []byte) (int, error) {
	if fo.Getdents == nil {
		return 0, unsupported("getdents")
	}
	return fo.Getdents(buf)
}

// DispatchReadlink calls fo.Readlink, or returns ENOSYS.
func DispatchReadlink(fo *FileOperations, buf []byte) (int, error) {
	if fo.Readlink == nil {
		return 0, unsupported("readlink")
	}
	return fo.Readlink(buf)
}

// DispatchSysMkdir calls so.Mkdir, or returns ENOSYS — this core has no
// real directory tree, so every SysOperations member is left nil by every
// concrete backend; the dispatcher exists so a caller driving a generic
// SysOperations still gets the documented ENOSYS rather than a nil-deref.
func DispatchSysMkdir(so *SysOperations, name string, mode int) error {
	if so.Mkdir == nil {
		return unsupported("mkdir")
	}
	return so.Mkdir(name, mode)
}

// DispatchSysStat calls so.Stat, or returns ENOSYS.
func DispatchSysStat(so *SysOperations, name string) (Stat, error) {
	if so.Stat == nil {
		return Stat{}, unsupported("stat")
	}
	return so.Stat(name)
}

// DispatchSysCreat calls so.Creat, or returns ENOSYS.
func DispatchSysCreat(so *SysOperations, name string, mode int) error {
	if so.Creat == nil {
		return unsupported("creat")
	}
	return so.Creat(name, mode)
}

// File is one open file description: the backend's operation table plus
// the bookkeeping the VFS layer itself owns (fd table entries reference
// this, the backend doesn't).
type File struct {
	Name  string
	Flags int
	Ops   *FileOperations
	refs  int
}

// Ref increments the open-file reference count (dup/fork semantics).
func (f *File) Ref() { f.refs++ }

// Unref decrements it, returning the count after the decrement.
func (f *File) Unref() int {
	if f.refs > 0 {
		f.refs--
	}
	return f.refs
}

// BlockDevice is a registered /dev/hd{a,b,...}-style device: a name and
// its FileOperations. The next-letter allocator lives in Registry.
type BlockDevice struct {
	Name string
	Ops  *FileOperations
}

// Registry is the device registration point spec §4.8 describes: a
// filesystem-type/mount callback slot is out of scope for this core (no
// real tree), but the block-device and fd allocation primitives it names
// are modeled directly since C7 depends on them.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*BlockDevice
	letter  byte
	nextFd  int
}

// NewRegistry constructs an empty device registry, fd numbering starting
// at 3 (0/1/2 reserved for stdio, matching the convention the teacher's
// fd-table code follows).
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*BlockDevice),
		letter:  'a',
		nextFd:  3,
	}
}

// RegisterDisk allocates the next monotonic /dev/hd letter and registers
// the device under it, per §4.7's "letter allocated monotonically".
func (r *Registry) RegisterDisk(ops *FileOperations) (name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.letter > 'z' {
		return "", kerr.NoMemory("register_disk")
	}
	name = "hd" + string(r.letter)
	r.letter++
	r.devices[name] = &BlockDevice{Name: name, Ops: ops}
	return name, nil
}

// Lookup returns the device registered under name ("hda", "hdb", ...).
func (r *Registry) Lookup(name string) (*BlockDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[name]
	if !ok {
		return nil, kerr.NoEntry("lookup")
	}
	return d, nil
}

// GetUnusedFD implements §4.8's get_unused_fd(): a monotonically
// increasing integer, since this core never actually closes a real fd
// table slot for reuse (out of scope: the fd table itself belongs to the
// process subsystem, not this core).
func (r *Registry) GetUnusedFD() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	fd := r.nextFd
	r.nextFd++
	return fd
}
