package sched

// Policy selects the next task to run from a runnable set. Spec §4.3
// documents two reference policies; both are first-class here behind
// this interface rather than one being "the" scheduler.
type Policy interface {
	// Pick returns the runnable task that should run next, or nil if
	// runnable is empty.
	Pick(runnable []*Task) *Task
	// Name identifies the policy for logging/diagnostics.
	Name() string
}

// weight mirrors the classic nice-to-weight table used by weighted-fair
// schedulers: lower numeric priority value (higher urgency) gets a
// larger weight. Charge multiplies elapsed ticks by this weight, so a
// larger weight makes vruntime grow faster per tick.
func weight(priority int) uint64 {
	w := 1024 - uint64(priority)*32
	if priority > 19 {
		w = 1024 - 19*32
	}
	if w < 16 {
		w = 16
	}
	return w
}

// CFSPolicy is the weighted-fair policy of §4.3: vruntime =
// Σ(Δexec × weight(priority)); the runnable task with the minimum
// vruntime is chosen, approximating fair sharing of CPU time weighted
// by priority.
type CFSPolicy struct{}

func (CFSPolicy) Name() string { return "cfs" }

func (CFSPolicy) Pick(runnable []*Task) *Task {
	var best *Task
	for _, t := range runnable {
		if best == nil || t.Entity.Vruntime < best.Entity.Vruntime {
			best = t
		}
	}
	return best
}

// Charge applies one tick of execution (weighted by the task's
// priority) to its vruntime and raw execution counters, per §4.3 step 1.
func (CFSPolicy) Charge(t *Task, deltaTicks uint64) {
	t.Entity.SumExecRuntime += deltaTicks
	t.Entity.Vruntime += deltaTicks * weight(t.Entity.Priority)
}

// EDFPolicy is the earliest-deadline-first policy for periodic tasks
// named in §4.3: the runnable periodic task with the nearest absolute
// Deadline is chosen. Non-periodic tasks are treated as having the
// largest possible deadline (lowest EDF priority) so periodic work
// always preempts best-effort work, matching the usual EDF+best-effort
// coexistence model.
type EDFPolicy struct{}

func (EDFPolicy) Name() string { return "edf" }

func (EDFPolicy) Pick(runnable []*Task) *Task {
	var best *Task
	for _, t := range runnable {
		if !t.Entity.IsPeriodic {
			continue
		}
		if best == nil || t.Entity.Deadline < best.Entity.Deadline {
			best = t
		}
	}
	if best != nil {
		return best
	}
	// No periodic task is runnable; fall back to FIFO order among the
	// best-effort set so EDF degrades gracefully instead of starving.
	if len(runnable) > 0 {
		return runnable[0]
	}
	return nil
}

// AdvancePeriod updates a periodic task's bookkeeping at the tick where
// its period elapses: NextPeriod advances, Executed resets, and Overrun
// is flagged if the task did not complete its WCET within the period
// that just ended, per §4.3 step 2.
func AdvancePeriod(t *Task, now uint64) {
	if !t.Entity.IsPeriodic {
		return
	}
	if now < t.Entity.NextPeriod {
		return
	}
	t.Entity.Overrun = t.Entity.Executed < t.Entity.WCET
	t.Entity.NextPeriod = now + t.Entity.Period
	t.Entity.Deadline = t.Entity.NextPeriod
	t.Entity.Executed = 0
}
