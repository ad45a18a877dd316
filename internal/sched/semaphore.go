package sched

import (
	"mentos/internal/banker"
	"mentos/internal/waitqueue"
)

// Semaphore is the smart-semaphore try-acquire path spec §2/§4.4 describe
// sitting in front of C4: a banker.State guarding a shared resource pool,
// invoked synchronously from whichever task the scheduler currently has
// selected, rather than from an independent goroutine. A request that
// cannot be granted safely parks the calling task on the semaphore's wait
// queue via Scheduler.SleepOn, so it is the scheduler's own Tick loop
// (not a channel) that eventually gives it another chance to run.
type Semaphore struct {
	sched *Scheduler
	bank  *banker.State
	head  *waitqueue.Head
	index map[*Task]int

	blocked []*waitqueue.Entry
}

// NewSemaphore builds a Semaphore over len(tasks) tasks and len(available)
// resource classes, indexed in the same order as tasks; that index is
// the task's row in the Banker's Max/Allocation/Need matrices.
func NewSemaphore(s *Scheduler, available []int, max [][]int, tasks []*Task) *Semaphore {
	index := make(map[*Task]int, len(tasks))
	for i, t := range tasks {
		index[t] = i
	}
	return &Semaphore{
		sched: s,
		bank:  banker.NewState(available, max),
		head:  waitqueue.NewHead(),
		index: index,
	}
}

// taskIndex looks up t's Banker's row, panicking on a task this Semaphore
// was never built with — a programming error, the same contract SleepOn
// uses for "no current task".
func (sem *Semaphore) taskIndex(t *Task) int {
	idx, ok := sem.index[t]
	if !ok {
		panic("sched: Semaphore used with unregistered task")
	}
	return idx
}

// TryAcquire implements the try-acquire half: t, which must be the
// scheduler's current task, asks for v more units of each resource class.
// A Safe verdict grants the request immediately. Wait or WaitUnsafe park
// t on the semaphore's wait queue via SleepOn and return that verdict
// without granting anything; the caller must call TryAcquire again once
// t is next scheduled (spurious-wakeup safe, same contract as SleepOn
// itself — some other task's Release may have already made the request
// grantable, or may not have). Error reports a request that exceeds t's
// declared maximum claim and never blocks.
func (sem *Semaphore) TryAcquire(t *Task, v []int) (banker.Verdict, error) {
	idx := sem.taskIndex(t)
	verdict, err := sem.bank.Request(idx, v)
	if err != nil || verdict == banker.Safe || verdict == banker.Error {
		return verdict, err
	}
	if t != sem.sched.Current() {
		panic("sched: Semaphore.TryAcquire blocking on a task that isn't current")
	}
	e := sem.sched.SleepOn(sem.head)
	sem.blocked = append(sem.blocked, e)
	return verdict, nil
}

// Release implements the matching free half: t gives back v units it
// previously acquired, then wakes every task parked on the semaphore so
// each gets a chance to retry TryAcquire on its next turn. Release does
// not itself decide which waiter's request the freed units satisfy —
// that is left to each waiter's own retried TryAcquire call, mirroring
// the Banker's algorithm's stance that availability, not queue order,
// decides who can proceed. Entries are removed from the wait queue
// directly (rather than via Head.Wake's default predicate) because
// WakeTask already flips the waiter to RUNNING, which would make the
// default "still blocked" predicate refuse to remove it.
func (sem *Semaphore) Release(t *Task, v []int) (banker.Verdict, error) {
	idx := sem.taskIndex(t)
	verdict, err := sem.bank.Free(idx, v)
	if err != nil {
		return verdict, err
	}

	waiters := sem.blocked
	sem.blocked = nil
	for _, e := range waiters {
		sem.head.Remove(e)
		sem.sched.WakeTask(e.Waiter.(*Task))
	}
	return verdict, nil
}
