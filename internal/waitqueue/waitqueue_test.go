package waitqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWaiter struct {
	blocked  bool
	runnable bool
}

func (f *fakeWaiter) Blocked() bool   { return f.blocked }
func (f *fakeWaiter) MarkRunnable()   { f.blocked = false; f.runnable = true }

func TestDefaultPredicateWakesBlocked(t *testing.T) {
	h := NewHead()
	w := &fakeWaiter{blocked: true}
	e := &Entry{Waiter: w}
	h.Add(e)

	n := h.WakeAll(ModeNormal)
	require.Equal(t, 1, n)
	require.True(t, w.runnable)
	require.True(t, h.Empty())
}

func TestPredicateFalseLeavesEntryQueued(t *testing.T) {
	h := NewHead()
	w := &fakeWaiter{blocked: true}
	calls := 0
	e := &Entry{
		Waiter: w,
		Predicate: func(e *Entry, m Mode) bool {
			calls++
			return false
		},
	}
	h.Add(e)
	n := h.WakeAll(ModeNormal)
	require.Equal(t, 0, n)
	require.Equal(t, 1, calls)
	require.False(t, h.Empty())
	require.Equal(t, 1, h.Len())
}

func TestSafeIterationToleratesRemoval(t *testing.T) {
	h := NewHead()
	var entries []*Entry
	for i := 0; i < 5; i++ {
		w := &fakeWaiter{blocked: true}
		e := &Entry{Waiter: w}
		entries = append(entries, e)
		h.Add(e)
	}
	n := h.WakeAll(ModeNormal)
	require.Equal(t, 5, n)
	require.True(t, h.Empty())
	for _, e := range entries {
		require.True(t, e.Waiter.(*fakeWaiter).runnable)
	}
}

func TestExclusiveEntriesGoToTailAndWakeOneStops(t *testing.T) {
	h := NewHead()
	var order []int
	for i := 0; i < 3; i++ {
		idx := i
		w := &fakeWaiter{blocked: true}
		h.Add(&Entry{
			Waiter:    w,
			Exclusive: true,
			Predicate: func(e *Entry, m Mode) bool {
				order = append(order, idx)
				return true
			},
		})
	}
	woken := h.Wake(ModeNormal, true)
	require.Equal(t, 1, woken)
	require.Equal(t, []int{0}, order)
	require.Equal(t, 2, h.Len())
}
