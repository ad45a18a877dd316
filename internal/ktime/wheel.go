// Package ktime implements the hierarchical timing wheel described in
// spec §4.1: a root vector of 256 one-tick buckets (TVR) and four
// secondary vectors of 64 buckets each (TVN[0..3]), with cascade-on-
// crossing semantics borrowed from the classic Varghese-Lauck wheel that
// the Linux kernel (and this repo's teacher lineage of kernels) uses for
// dynamic timers.
package ktime

import (
	"github.com/rs/zerolog"

	"mentos/internal/klog"
)

const (
	tvrBits  = 8
	tvrSize  = 1 << tvrBits // 256
	tvnBits  = 6
	tvnSize  = 1 << tvnBits // 64
	tvnCount = 4
)

// Callback is invoked with the opaque data word the timer was armed with.
// Callbacks are expected to be infallible; see Base.run for the logging
// policy on nil callbacks.
type Callback func(data any)

// Entry is a single dynamic timer: an absolute expiry in ticks, a
// callback, and an opaque data word. At most one list membership at a
// time (the spec's invariant): an Entry removed from one bucket is never
// left referenced by another.
type Entry struct {
	Expires  uint64
	Callback Callback
	Data     any

	base   *Base // nil when detached
	bucket *bucket
	prev   *Entry
	next   *Entry
}

// Pending reports whether the entry is currently armed (on some bucket).
func (e *Entry) Pending() bool { return e.base != nil }

type bucket struct {
	head *Entry
}

func (b *bucket) insert(e *Entry) {
	e.bucket = b
	e.next = b.head
	e.prev = nil
	if b.head != nil {
		b.head.prev = e
	}
	b.head = e
}

func (b *bucket) remove(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev, e.next, e.bucket = nil, nil, nil
}

// Base is a per-CPU timer base: the wheel's cursor and its five vectors.
// Base has no lock of its own: Add, Remove, Modify and Advance must not
// run concurrently. Callbacks run synchronously inside Advance, so a
// callback may re-arm (allocate a fresh Entry and Add it).
type Base struct {
	log zerolog.Logger

	// All mutation of cursor and the vectors happens from
	// Advance/Add/Remove, which the caller serializes (the scheduler tick
	// is single-threaded by construction).
	cursor  uint64
	tvr     [tvrSize]bucket
	tvn     [tvnCount][tvnSize]bucket
	running *Entry // currently-executing timer, for self-rearm detection
}

// NewBase constructs a timer base with its cursor at the given starting
// tick (normally 0).
func NewBase(startTick uint64, log zerolog.Logger) *Base {
	return &Base{cursor: startTick, log: log}
}

// NewBaseDefault is NewBase with a discard logger, for callers (mostly
// tests) that don't care about timer diagnostics.
func NewBaseDefault(startTick uint64) *Base {
	return NewBase(startTick, klog.Nop())
}

// Now returns the base's current tick cursor.
func (b *Base) Now() uint64 { return b.cursor }

func (b *Base) indexFor(expires uint64) (*bucket, bool) {
	delta := int64(expires) - int64(b.cursor)
	if delta < 0 {
		// Past-due: lands in the current TVR bucket so it fires on the
		// next Advance, matching the spec's handling of negative Δ.
		return &b.tvr[b.cursor&(tvrSize-1)], true
	}
	d := uint64(delta)
	switch {
	case d < tvrSize:
		return &b.tvr[expires&(tvrSize-1)], true
	case d < 1<<(tvrBits+tvnBits):
		return &b.tvn[0][(expires>>tvrBits)&(tvnSize-1)], true
	case d < 1<<(tvrBits+2*tvnBits):
		return &b.tvn[1][(expires>>(tvrBits+tvnBits))&(tvnSize-1)], true
	case d < 1<<(tvrBits+3*tvnBits):
		return &b.tvn[2][(expires>>(tvrBits+2*tvnBits))&(tvnSize-1)], true
	default:
		return &b.tvn[3][(expires>>(tvrBits+3*tvnBits))&(tvnSize-1)], true
	}
}

// Add arms e at e.Expires. e must not already be pending.
func (b *Base) Add(e *Entry) {
	if e.Pending() {
		panic("ktime: Add of already-armed entry")
	}
	bk, _ := b.indexFor(e.Expires)
	bk.insert(e)
	e.base = b
}

// Remove cancels e if still pending; it is a no-op otherwise (an already
// fired-and-detached entry).
func (b *Base) Remove(e *Entry) {
	if !e.Pending() || e.base != b {
		return
	}
	e.bucket.remove(e)
	e.base = nil
}

// Modify is remove+add at a new expiry, as §4.1 specifies.
func (b *Base) Modify(e *Entry, newExpires uint64) {
	b.Remove(e)
	e.Expires = newExpires
	b.Add(e)
}

// cascade moves every timer out of tvn[level][idx] back into the wheel via
// the ordinary bucket-selection rule (indexFor), which is what makes
//"cascade" observably just a batch re-insertion.
func (b *Base) cascade(level, idx int) {
	bk := &b.tvn[level][idx]
	e := bk.head
	for e != nil {
		next := e.next // safe-iteration: save next before any mutation
		bk.remove(e)
		e.base = nil
		b.Add(e)
		e = next
	}
}

// Advance moves the cursor forward by one tick, cascading and firing any
// timers whose expiry has been reached. It is called once per hardware
// tick by the owning scheduler's softirq step (§4.3 step 4). Returns the
// number of timers fired.
func (b *Base) Advance() int {
	idx := b.cursor & (tvrSize - 1)

	// Cascade whenever the root vector wraps (idx==0), transitively up
	// through the secondary vectors when *their* bucket is also
	// exhausted — exactly the Linux timer-wheel cascade chain.
	if idx == 0 {
		for level := 0; level < tvnCount; level++ {
			vidx := (b.cursor >> (tvrBits + uint(level)*tvnBits)) & (tvnSize - 1)
			b.cascade(level, int(vidx))
			if vidx != 0 {
				break
			}
		}
	}

	fired := 0
	bk := &b.tvr[idx]
	e := bk.head
	for e != nil {
		next := e.next
		bk.remove(e)
		e.base = nil
		b.fire(e)
		fired++
		e = next
	}

	b.cursor++
	return fired
}

func (b *Base) fire(e *Entry) {
	if e.Callback == nil {
		b.log.Warn().Uint64("expires", e.Expires).Msg("ktime: nil callback skipped")
		return
	}
	prevRunning := b.running
	b.running = e
	e.Callback(e.Data)
	b.running = prevRunning
}

// IsRunning reports whether e is the timer currently executing its
// callback (used by self-rearm detection in higher layers).
func (b *Base) IsRunning(e *Entry) bool { return b.running == e }
