package sched

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mentos/internal/banker"
	"mentos/internal/klog"
)

func TestSemaphoreGrantsSafeRequestImmediately(t *testing.T) {
	s := New(CFSPolicy{}, klog.Nop())
	a := newTask(1, "a", 10)
	b := newTask(2, "b", 10)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Tick() // a current

	sem := NewSemaphore(s, []int{3, 3}, [][]int{{3, 3}, {3, 3}}, []*Task{a, b})

	v, err := sem.TryAcquire(a, []int{1, 0})
	require.NoError(t, err)
	require.Equal(t, banker.Safe, v)
	require.Equal(t, a, s.Current(), "a grant must not block or switch the task away")
}

func TestSemaphoreBlocksUnsafeRequestThenGrantsAfterRelease(t *testing.T) {
	s := New(CFSPolicy{}, klog.Nop())
	a := newTask(1, "a", 10)
	b := newTask(2, "b", 10)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Tick() // a current

	// Two tasks, one resource class, one unit total: a claims it first.
	sem := NewSemaphore(s, []int{1}, [][]int{{1}, {1}}, []*Task{a, b})

	v, err := sem.TryAcquire(a, []int{1})
	require.NoError(t, err)
	require.Equal(t, banker.Safe, v)

	// b's turn: available is now 0, so b's request cannot be satisfied and
	// must block rather than proceed.
	s.switchTo(b)
	v, err = sem.TryAcquire(b, []int{1})
	require.NoError(t, err)
	require.NotEqual(t, banker.Safe, v)
	require.True(t, b.Blocked(), "b should be parked after an unsatisfiable request")
	require.NotEqual(t, b, s.Current(), "SleepOn must have switched b off the CPU")

	// a frees its unit; b should become runnable again (re-enqueued), even
	// though it must call TryAcquire again itself to actually get the grant.
	_, err = sem.Release(a, []int{1})
	require.NoError(t, err)
	require.False(t, b.Blocked())

	v, err = sem.TryAcquire(b, []int{1})
	require.NoError(t, err)
	require.Equal(t, banker.Safe, v)
}

func TestSemaphoreRequestExceedingMaxIsError(t *testing.T) {
	s := New(CFSPolicy{}, klog.Nop())
	a := newTask(1, "a", 10)
	s.Enqueue(a)
	s.Tick()

	sem := NewSemaphore(s, []int{1}, [][]int{{1}}, []*Task{a})

	v, err := sem.TryAcquire(a, []int{2})
	require.NoError(t, err)
	require.Equal(t, banker.Error, v)
	require.Equal(t, a, s.Current(), "an Error verdict must not block the task")
}

func TestSemaphoreUnregisteredTaskPanics(t *testing.T) {
	s := New(CFSPolicy{}, klog.Nop())
	a := newTask(1, "a", 10)
	other := newTask(2, "other", 10)
	s.Enqueue(a)
	s.Tick()

	sem := NewSemaphore(s, []int{1}, [][]int{{1}}, []*Task{a})

	require.Panics(t, func() {
		sem.TryAcquire(other, []int{1})
	})
}
