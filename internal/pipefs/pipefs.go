// Package pipefs implements the pipe subsystem of spec §4.6: a ring of
// NUMBUFS fixed buffers with blocking (or non-blocking) read/write, and
// reader/writer reference counts that drive EOF and wakeups.
package pipefs

import (
	"sync"

	"mentos/internal/kerr"
	"mentos/internal/waitqueue"
)

// Geometry constants. The reference implementation uses 64 B buffers for
// testing; implementers must not assume a page-size equivalence (spec's
// data-model note), so these are ordinary package constants, not tied to
// any platform page size.
const (
	NumBufs  = 5
	BufSize  = 64
	pipeSize = NumBufs * BufSize
)

// buffer is one ring slot: payload bytes plus the offset/length pair that
// lets partial consumption happen without shifting memory.
type buffer struct {
	data   [BufSize]byte
	offset int
	length int
}

func (b *buffer) empty() bool    { return b.length == 0 }
func (b *buffer) available() int { return b.length }
func (b *buffer) capacity() int  { return BufSize - (b.offset + b.length) }

// confirm validates the buffer's accounting invariant (offset+len <=
// BufSize). There is no vtable in this rewrite — pipefs is the only
// buffer implementation — so confirm is purely the arithmetic check.
func (b *buffer) confirm() bool { return b.offset+b.length <= BufSize }

func (b *buffer) read(dst []byte) int {
	n := len(dst)
	if n > b.length {
		n = b.length
	}
	copy(dst[:n], b.data[b.offset:b.offset+n])
	b.offset += n
	b.length -= n
	if b.length == 0 {
		b.offset = 0
	}
	return n
}

func (b *buffer) write(src []byte) int {
	n := len(src)
	if cap := b.capacity(); n > cap {
		n = cap
	}
	copy(b.data[b.offset+b.length:b.offset+b.length+n], src[:n])
	b.length += n
	return n
}

// Pipe is one pipe's shared info (the C6 "pipe inode info"): the buffer
// ring, linear read/write indices, role counts, and the two wait-queue
// heads blocking readers/writers park on.
type Pipe struct {
	mu sync.Mutex

	bufs       [NumBufs]buffer
	readIndex  int
	writeIndex int

	Readers int
	Writers int

	readWait  *waitqueue.Head
	writeWait *waitqueue.Head

	nonBlockRead  bool
	nonBlockWrite bool
}

// New allocates an empty pipe with one reader and one writer (sys_pipe's
// contract: both ends open immediately after creation).
func New() *Pipe {
	p := &Pipe{
		Readers:   1,
		Writers:   1,
		readWait:  waitqueue.NewHead(),
		writeWait: waitqueue.NewHead(),
	}
	for i := range p.bufs {
		if !p.bufs[i].confirm() {
			panic("pipefs: fresh buffer fails confirm")
		}
	}
	return p
}

// SetNonBlocking applies fcntl(F_SETFL, O_NONBLOCK) independently to the
// read or write end (the two ends are separate vfs_files over one Pipe).
func (p *Pipe) SetNonBlocking(write, nonBlocking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if write {
		p.nonBlockWrite = nonBlocking
	} else {
		p.nonBlockRead = nonBlocking
	}
}

func totalUnread(bufs *[NumBufs]buffer) int {
	n := 0
	for i := range bufs {
		n += bufs[i].available()
	}
	return n
}

// Read implements spec §4.6's read(file, buf, n). It returns the number
// of bytes actually read (0 means EOF when writers == 0 and the pipe is
// empty).
//
// The §9 open question on the blocking path is resolved here the
// recommended way: rather than returning -EAGAIN right after scheduling
// the sleep, the read loop genuinely completes after being woken,
// re-checking the empty/EOF condition each time (spurious-wakeup safe),
// using waitqueue.Signal so the calling goroutine actually parks.
func (p *Pipe) Read(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	read := 0
	for read < len(dst) {
		if totalUnread(&p.bufs) == 0 {
			if p.Writers == 0 {
				break // EOF: return whatever was accumulated (possibly 0)
			}
			if p.nonBlockRead {
				if read > 0 {
					break
				}
				return 0, kerr.TryAgain("pipe_read")
			}
			p.block(p.readWait)
			continue
		}

		idx := p.readIndex / BufSize % NumBufs
		b := &p.bufs[idx]
		if !b.confirm() {
			return read, kerr.InvalidArg("pipe_read")
		}
		n := b.read(dst[read:])
		read += n
		p.readIndex = (p.readIndex + n) % pipeSize
		if n == 0 {
			break // underflow: nothing more to take from this buffer right now
		}
	}

	p.writeWait.WakeAll(waitqueue.ModeNormal)
	return read, nil
}

// block parks the calling goroutine on head until woken, releasing the
// pipe mutex for the duration (mirrors sleep_on releasing the lock the
// scheduler's tick loop would otherwise need).
func (p *Pipe) block(head *waitqueue.Head) {
	sig := waitqueue.NewSignal()
	entry := &waitqueue.Entry{Waiter: sig}
	head.Add(entry)
	p.mu.Unlock()
	sig.Wait()
	p.mu.Lock()
}

// Write implements spec §4.6's write(file, buf, n).
func (p *Pipe) Write(src []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for written < len(src) {
		idx := p.writeIndex / BufSize % NumBufs
		b := &p.bufs[idx]
		if !b.confirm() {
			return written, kerr.InvalidArg("pipe_write")
		}
		if b.capacity() == 0 {
			if p.Readers == 0 {
				// No EPIPE kind exists in kerr's §7 taxonomy; PermissionDenied
				// is the nearest fit for "this write can never proceed" (see
				// DESIGN.md).
				return written, kerr.PermissionDenied("pipe_write")
			}
			if p.nonBlockWrite {
				if written > 0 {
					break
				}
				return 0, kerr.TryAgain("pipe_write")
			}
			p.block(p.writeWait)
			continue
		}
		n := b.write(src[written:])
		written += n
		p.writeIndex = (p.writeIndex + n) % pipeSize
		if n == 0 {
			break
		}
	}

	p.readWait.WakeAll(waitqueue.ModeNormal)
	return written, nil
}

// CloseRead decrements the reader count; if it reaches zero and no writer
// remains either, the caller should drop the Pipe (deallocated by GC once
// unreferenced — there is no explicit free step needed in Go).
func (p *Pipe) CloseRead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Readers > 0 {
		p.Readers--
	}
}

// CloseWrite decrements the writer count; reaching zero wakes every
// blocked reader so they observe EOF (spec §4.6's close contract).
func (p *Pipe) CloseWrite() {
	p.mu.Lock()
	p.Writers--
	hitZero := p.Writers == 0
	p.mu.Unlock()
	if hitZero {
		p.readWait.WakeAll(waitqueue.ModeNormal)
	}
}
