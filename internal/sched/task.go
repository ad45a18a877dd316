// Package sched implements the preemptive task scheduler of spec §4.3: a
// task state machine, a runqueue, tick-driven preemption, and two
// pluggable selection policies (weighted-fair vruntime and EDF for
// periodic tasks), wired to the C1 timing wheel and C2 wait queues.
package sched

import (
	"github.com/rs/zerolog"

	"mentos/internal/klog"
	"mentos/internal/ktime"
	"mentos/internal/waitqueue"
)

// State is one of the volatile task states named in spec §3.
type State int

const (
	Running State = iota
	Interruptible
	Uninterruptible
	Stopped
	Traced
	Zombie
	Dead
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Interruptible:
		return "INTERRUPTIBLE"
	case Uninterruptible:
		return "UNINTERRUPTIBLE"
	case Stopped:
		return "STOPPED"
	case Traced:
		return "TRACED"
	case Zombie:
		return "ZOMBIE"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// IntervalTimer is one of the three {real,virt,prof} interval timer
// pairs from spec §3: an increment plus a current value, in ticks.
type IntervalTimer struct {
	Increment uint64
	Current   uint64
}

// fire decrements Current by one tick (if armed) and reports whether it
// just reached zero, rearming from Increment per POSIX setitimer
// semantics.
func (it *IntervalTimer) fire() (expired bool) {
	if it.Current == 0 {
		return false
	}
	it.Current--
	if it.Current == 0 {
		expired = true
		it.Current = it.Increment
	}
	return expired
}

// SchedEntity is the portion of Task the scheduler owns write access to,
// per spec §3's "Scheduling entity is embedded in Task" note.
type SchedEntity struct {
	Priority       int
	StartRuntime   uint64
	ExecStart      uint64
	SumExecRuntime uint64
	Vruntime       uint64

	// Periodic-task fields, used only when IsPeriodic.
	IsPeriodic    bool
	IsUnderAnalysis bool
	Period        uint64
	Deadline      uint64
	Arrival       uint64
	WCET          uint64
	Utilization   float64
	NextPeriod    uint64
	Executed      uint64
	Overrun       bool
}

// Task is the schedulable unit of spec §3. Only the fields the core
// scheduler, wait queues, and timers actually touch are modeled; the
// rest of a real kernel's task_struct (memory descriptor, fd table,
// signals, terminal state) is out of C3's scope and has no fields here.
type Task struct {
	PID   int
	Name  string
	state State

	Entity SchedEntity

	Parent   *Task
	Children []*Task

	// alarmTimer is the task's single owned dynamic timer for SIGALRM
	// scheduling (spec §3).
	alarmTimer *ktime.Entry
	OnAlarm    func(*Task)

	RealTimer IntervalTimer
	VirtTimer IntervalTimer
	ProfTimer IntervalTimer
	OnVTAlarm func(*Task) // SIGVTALRM delivery hook
	OnProfAlarm func(*Task) // SIGPROF delivery hook

	ExitCode int

	waitEntry *waitqueue.Entry // non-nil while blocked
	onRunqueue bool
}

// Blocked implements waitqueue.Waiter: only a task actually suspended
// (UNINTERRUPTIBLE or STOPPED, per spec §4.2's default predicate) is
// eligible for the default wake.
func (t *Task) Blocked() bool {
	return t.state == Uninterruptible || t.state == Stopped
}

// MarkRunnable implements waitqueue.Waiter: flips the task back to
// RUNNING. The scheduler that owns t is responsible for re-enqueueing it
// onto the runqueue (done by Scheduler.WakeTask); MarkRunnable itself
// only performs the state transition so it can be called directly from
// a wait-queue Wake() call without a scheduler back-reference.
func (t *Task) MarkRunnable() {
	t.state = Running
}

// State returns the task's current volatile state.
func (t *Task) State() State { return t.state }

func newLogger(log *zerolog.Logger) zerolog.Logger {
	if log != nil {
		return *log
	}
	return klog.Nop()
}
