package pipefs

import (
	"mentos/internal/kerr"
	"mentos/internal/vfs"
)

// fcntl commands and flags §4.6 names: F_GETFL/F_SETFL applying O_NONBLOCK.
const (
	FGetFL    = 3
	FSetFL    = 4
	ONonBlock = 1 << 11
)

func unsupportedFcntl(cmd int) error {
	return kerr.NotSupported("pipe_fcntl")
}

// ReadEnd adapts p's read side to vfs.FileOperations. Lseek and Stat are
// deliberately left nil: §4.6's failure semantics state "lseek/fstat on a
// pipe always fail", and vfs.Dispatch* turns a nil member into ENOSYS.
func (p *Pipe) ReadEnd() *vfs.FileOperations {
	return &vfs.FileOperations{
		Read: func(buf []byte, _ int64) (int, error) {
			return p.Read(buf)
		},
		Close: func() error {
			p.CloseRead()
			return nil
		},
		Fcntl: func(cmd int, arg uintptr) (int, error) {
			return p.fcntl(false, cmd, arg)
		},
	}
}

// WriteEnd adapts p's write side to vfs.FileOperations, the same way
// ReadEnd does for reads.
func (p *Pipe) WriteEnd() *vfs.FileOperations {
	return &vfs.FileOperations{
		Write: func(buf []byte, _ int64) (int, error) {
			return p.Write(buf)
		},
		Close: func() error {
			p.CloseWrite()
			return nil
		},
		Fcntl: func(cmd int, arg uintptr) (int, error) {
			return p.fcntl(true, cmd, arg)
		},
	}
}

// fcntl implements §4.6's fcntl(file, cmd, arg): F_GETFL reports the
// non-blocking flag for this end, F_SETFL applies O_NONBLOCK from arg.
func (p *Pipe) fcntl(write bool, cmd int, arg uintptr) (int, error) {
	switch cmd {
	case FGetFL:
		p.mu.Lock()
		defer p.mu.Unlock()
		nonBlock := p.nonBlockRead
		if write {
			nonBlock = p.nonBlockWrite
		}
		if nonBlock {
			return ONonBlock, nil
		}
		return 0, nil
	case FSetFL:
		p.SetNonBlocking(write, arg&ONonBlock != 0)
		return 0, nil
	default:
		return 0, unsupportedFcntl(cmd)
	}
}
