// Package waitqueue implements the suspend/resume primitive described in
// spec §4.2: a per-resource FIFO of entries, each carrying a wake
// predicate, used by every blocking operation in C5/C6 and by the
// scheduler's sleep_on path (§4.3).
package waitqueue

import "sync"

// Mode distinguishes a normal wake from a synchronous one (mirrors the
// `sync` argument the spec's predicate signature carries); most
// predicates ignore it.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSync
)

// WakePredicate decides whether an entry should wake. Returning true
// means "remove me and make my task runnable"; the caller (the waker)
// performs that removal in the same critical section, per the spec's
// invariant that a predicate returning 1 is never visited again.
type WakePredicate func(e *Entry, mode Mode) bool

// Waiter is the minimal surface a blockable task exposes to the wait
// queue: its own readiness state and how to flip it. Concrete schedulers
// (internal/sched.Task) implement this.
type Waiter interface {
	// Blocked reports whether the default predicate should fire for
	// this waiter (the task is in a state from which a wake makes
	// sense — UNINTERRUPTIBLE or STOPPED per §4.2).
	Blocked() bool
	MarkRunnable()
}

// Entry is one FIFO member. Private may hold subsystem-specific context
// (e.g. the pipe being waited on), exactly as §3 describes.
type Entry struct {
	Waiter    Waiter
	Exclusive bool
	Predicate WakePredicate
	Private   any

	prev, next *Entry
	on         *Head
}

// Head is a wait-queue head: a lock plus an intrusive FIFO list.
type Head struct {
	mu   sync.Mutex
	head *Entry
	tail *Entry
}

// NewHead constructs an empty wait-queue head.
func NewHead() *Head { return &Head{} }

// Add inserts e under the head lock. Exclusive entries go to the tail
// (so a thundering-herd wake only needs to satisfy one before stopping,
// the classic exclusive-wait convention); non-exclusive entries go to
// the head.
func (h *Head) Add(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.on = h
	if e.Exclusive || h.head == nil {
		// tail insert
		e.prev = h.tail
		e.next = nil
		if h.tail != nil {
			h.tail.next = e
		} else {
			h.head = e
		}
		h.tail = e
		return
	}
	// head insert
	e.prev = nil
	e.next = h.head
	h.head.prev = e
	h.head = e
}

// remove must be called with h.mu held.
func (h *Head) remove(e *Entry) {
	if e.on != h {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		h.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		h.tail = e.prev
	}
	e.prev, e.next, e.on = nil, nil, nil
}

// Remove detaches e if it is still queued; harmless if already woken.
func (h *Head) Remove(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(e)
}

// DefaultPredicate wakes unconditionally provided the waiter is in a
// blocked state, per §4.2's default.
func DefaultPredicate(e *Entry, _ Mode) bool {
	return e.Waiter.Blocked()
}

// Wake walks the list under the lock, calling each entry's predicate.
// Any entry whose predicate returns true is removed in this same
// critical section and marked runnable — satisfying the spec's
// liveness invariant (never both queued and runnable, never neither).
// Iteration uses the save-next-before-visit idiom so removal mid-walk is
// safe. Wake returns the number of entries woken. If exclusiveStop is
// true, iteration stops after the first successfully woken exclusive
// entry (the standard "wake one" convention for producer/consumer
// handoffs).
func (h *Head) Wake(mode Mode, exclusiveStop bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	woken := 0
	e := h.head
	for e != nil {
		next := e.next
		pred := e.Predicate
		if pred == nil {
			pred = DefaultPredicate
		}
		if pred(e, mode) {
			h.remove(e)
			e.Waiter.MarkRunnable()
			woken++
			if exclusiveStop && e.Exclusive {
				return woken
			}
		}
		e = next
	}
	return woken
}

// WakeAll is Wake(mode, false): every satisfied predicate is woken.
func (h *Head) WakeAll(mode Mode) int { return h.Wake(mode, false) }

// WakeOne wakes at most one entry (the first whose predicate fires),
// the convention used when handing off a single unit of work.
func (h *Head) WakeOne(mode Mode) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.head
	for e != nil {
		next := e.next
		pred := e.Predicate
		if pred == nil {
			pred = DefaultPredicate
		}
		if pred(e, mode) {
			h.remove(e)
			e.Waiter.MarkRunnable()
			return 1
		}
		e = next
	}
	return 0
}

// Signal is a Waiter backed by a channel. It is the bridge between the
// kernel's single-threaded "the wait-queue entry IS the continuation"
// design (spec §9) and Go's actual concurrency model: a caller that wants
// a real goroutine to block (rather than just flip a task's state for a
// tick-driven scheduler to observe, as internal/sched.Task does) adds a
// *Signal-backed Entry to a Head and then calls Wait, which returns only
// after some other goroutine's Wake/WakeAll/WakeOne marks it runnable.
type Signal struct {
	ready chan struct{}
}

// NewSignal allocates an unfired Signal.
func NewSignal() *Signal { return &Signal{ready: make(chan struct{})} }

// Blocked always reports true: a Signal exists only while its goroutine is
// parked in Wait.
func (s *Signal) Blocked() bool { return true }

// MarkRunnable fires the signal, releasing any goroutine in Wait. Safe to
// call at most once per Signal (Wake's critical section guarantees that:
// a predicate returning true is never visited again).
func (s *Signal) MarkRunnable() { close(s.ready) }

// Wait blocks the calling goroutine until MarkRunnable is called.
func (s *Signal) Wait() { <-s.ready }

// Empty reports whether the head currently has no queued entries.
func (h *Head) Empty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head == nil
}

// Len returns the number of queued entries (O(n), diagnostic use only).
func (h *Head) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for e := h.head; e != nil; e = e.next {
		n++
	}
	return n
}
