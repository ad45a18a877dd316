package sched

import (
	"github.com/rs/zerolog"

	"mentos/internal/ktime"
	"mentos/internal/waitqueue"
)

// Scheduler owns the runqueue, the timer base driving it, and the
// currently-selected policy. It is single-CPU, cooperative+preemptive
// per spec §4.3/§5: all state transitions here are expected to run with
// interrupts conceptually disabled (in this library rewrite, that means
// "called from a single goroutine" — see SPEC_FULL.md's simulation
// strategy note).
type Scheduler struct {
	log zerolog.Logger

	Timers *ktime.Base
	Policy Policy

	runqueue []*Task
	current  *Task
	ticks    uint64

	// SwitchHook, if set, is invoked with (from, to) whenever the
	// scheduler actually performs a context switch (from != to); the
	// hook can drive FPU lazy-save bookkeeping in a higher layer, since
	// that state is outside C3's scope (spec §3: "FPU save is lazy —
	// only touched if the outgoing or incoming task actually used it").
	SwitchHook func(from, to *Task)
}

// New constructs a Scheduler with the given policy, starting its timer
// base at tick 0.
func New(policy Policy, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:    log,
		Timers: ktime.NewBase(0, log),
		Policy: policy,
	}
}

// Now returns the scheduler's current tick count.
func (s *Scheduler) Now() uint64 { return s.ticks }

// Current returns the presently-running task, or nil.
func (s *Scheduler) Current() *Task { return s.current }

// Enqueue adds t to the runqueue as RUNNING and eligible for selection.
// Used both for brand-new tasks and for re-enqueueing a task woken from
// a wait queue.
func (s *Scheduler) Enqueue(t *Task) {
	if t.onRunqueue {
		return
	}
	t.state = Running
	t.onRunqueue = true
	s.runqueue = append(s.runqueue, t)
}

func (s *Scheduler) dequeue(t *Task) {
	for i, r := range s.runqueue {
		if r == t {
			s.runqueue = append(s.runqueue[:i], s.runqueue[i+1:]...)
			break
		}
	}
	t.onRunqueue = false
}

// runnableSet returns the runqueue as is, without filtering by state:
// Enqueue sets RUNNING, and SleepOn, Stop and Exit dequeue a task when it
// leaves RUNNING, so every task on the runqueue is RUNNING.
func (s *Scheduler) runnableSet() []*Task {
	return s.runqueue
}

// Tick performs one full scheduler tick per spec §4.3: charge the
// outgoing task, update periodic bookkeeping, update interval timers
// (firing SIGPROF/SIGVTALRM hooks), run the timer softirq (ktime.Base),
// select the next task, and context switch if different.
func (s *Scheduler) Tick() {
	s.ticks++

	if s.current != nil {
		if cfs, ok := s.Policy.(CFSPolicy); ok {
			cfs.Charge(s.current, 1)
		} else {
			s.current.Entity.SumExecRuntime++
		}
		AdvancePeriod(s.current, s.ticks)
		if s.current.Entity.IsPeriodic {
			s.current.Entity.Executed++
		}

		if s.current.RealTimer.fire() && s.current.OnAlarm != nil {
			s.current.OnAlarm(s.current)
		}
		if s.current.VirtTimer.fire() && s.current.OnVTAlarm != nil {
			s.current.OnVTAlarm(s.current)
		}
		if s.current.ProfTimer.fire() && s.current.OnProfAlarm != nil {
			s.current.OnProfAlarm(s.current)
		}
	}

	s.Timers.Advance()

	next := s.Policy.Pick(s.runnableSet())
	s.switchTo(next)
}

func (s *Scheduler) switchTo(next *Task) {
	prev := s.current
	if next == prev {
		return
	}
	s.current = next
	if s.SwitchHook != nil {
		s.SwitchHook(prev, next)
	}
}

// Yield cooperatively gives up the CPU without blocking: the current
// task stays RUNNING and on the runqueue, but the policy is asked to
// pick again (which may pick someone else, or pick it right back if it
// still has the minimum vruntime / earliest deadline).
func (s *Scheduler) Yield() {
	next := s.Policy.Pick(s.runnableSet())
	s.switchTo(next)
}

// SleepOn implements spec §4.2's sleep_on(head): transitions t to
// UNINTERRUPTIBLE, removes it from the runqueue, allocates and inserts a
// wait-queue entry bound to t, and returns the entry so the caller can
// bind a predicate and a private pointer. This single-CPU rewrite models
// the real kernel's "go idle until woken" as an explicit state transition
// rather than a parked goroutine (see SPEC_FULL.md): the caller owns
// driving Tick() until the task is runnable again, the same way a real
// scheduler's idle loop keeps ticking until the next interrupt. Spurious
// wakeups are possible (§4.3/§5): callers must recheck their condition
// after the entry's predicate fires.
func (s *Scheduler) SleepOn(head *waitqueue.Head) *waitqueue.Entry {
	t := s.current
	if t == nil {
		panic("sched: SleepOn with no current task")
	}
	t.state = Uninterruptible
	s.dequeue(t)

	e := &waitqueue.Entry{Waiter: t}
	t.waitEntry = e
	head.Add(e)

	next := s.Policy.Pick(s.runnableSet())
	s.switchTo(next)
	return e
}

// WakeTask is the scheduler-aware half of waking a task blocked via
// SleepOn: it marks the task runnable (via its Waiter.MarkRunnable, same
// as a plain wait-queue Wake) and re-enqueues it onto the runqueue, since
// plain waitqueue.Head.Wake only flips task state and has no runqueue to
// push back onto.
func (s *Scheduler) WakeTask(t *Task) {
	t.MarkRunnable()
	s.Enqueue(t)
}

// SleepTimeout arms a dynamic timer that will forcibly wake t (via
// WakeTask) after the given number of ticks if nothing else woke it
// first — the upper bound on sleep duration spec §4.3/§5 requires for
// timed waits. Returns the timer entry so the caller can cancel it on
// early wake (avoiding a stale wakeup racing a legitimate one).
func (s *Scheduler) SleepTimeout(t *Task, ticks uint64) *ktime.Entry {
	e := &ktime.Entry{
		Expires: s.ticks + ticks,
		Callback: func(data any) {
			task := data.(*Task)
			if task.Blocked() {
				s.WakeTask(task)
			}
		},
		Data: t,
	}
	s.Timers.Add(e)
	return e
}

// CancelTimeout detaches a SleepTimeout entry; safe to call even if it
// already fired.
func (s *Scheduler) CancelTimeout(e *ktime.Entry) {
	s.Timers.Remove(e)
}

// Exit transitions t to ZOMBIE, retaining its exit code until the parent
// reaps it (spec §3).
func (s *Scheduler) Exit(t *Task, code int) {
	t.state = Zombie
	t.ExitCode = code
	s.dequeue(t)
}

// Reap transitions a ZOMBIE task to DEAD once its parent has collected
// its exit code; its memory becomes reclaimable at this point (spec §3).
func (s *Scheduler) Reap(t *Task) (exitCode int, ok bool) {
	if t.state != Zombie {
		return 0, false
	}
	t.state = Dead
	return t.ExitCode, true
}

// Stop transitions a RUNNING task to STOPPED (job-control signal).
func (s *Scheduler) Stop(t *Task) {
	t.state = Stopped
	s.dequeue(t)
}

// Continue transitions a STOPPED task back to RUNNING and onto the
// runqueue.
func (s *Scheduler) Continue(t *Task) {
	s.Enqueue(t)
}

// ArmAlarm (re)arms t's single owned SIGALRM timer to fire in `ticks`
// ticks from now, per spec §3's "a single owned dynamic timer for
// SIGALRM scheduling". Re-arming cancels any previous alarm.
func (s *Scheduler) ArmAlarm(t *Task, ticks uint64) {
	if t.alarmTimer != nil {
		s.Timers.Remove(t.alarmTimer)
	}
	if ticks == 0 {
		t.alarmTimer = nil
		return
	}
	t.alarmTimer = &ktime.Entry{
		Expires: s.ticks + ticks,
		Callback: func(data any) {
			task := data.(*Task)
			if task.OnAlarm != nil {
				task.OnAlarm(task)
			}
		},
		Data: t,
	}
	s.Timers.Add(t.alarmTimer)
}
