package task

import "time"

// Config controls admission and per-tick work.
type Config struct {
	// Capacity bounds queued plus running tasks. Submissions beyond it fail.
	Capacity int

	// Concurrency limits tasks in progress at once. 0 means no limit: every
	// admitted task is started and stepped each tick.
	Concurrency int

	// TickBudget caps the time spent stepping tasks in one tick. At least one
	// task is always stepped; the rest resume next tick where this one
	// stopped. 0 disables the ceiling.
	TickBudget time.Duration

	// OnFinish, if set, observes every task leaving the queue, after its
	// own callback ran.
	OnFinish func(t *Task)
}

// Stats counts task outcomes since construction.
type Stats struct {
	Submitted int
	Rejected  int
	Completed int
	Failed    int
}

// Scheduler owns a bounded FIFO of tasks and advances them cooperatively.
// Not safe for concurrent use: it belongs to the main loop.
type Scheduler struct {
	cfg    Config
	now    func() time.Time
	queue  []*Task
	cursor int
	ticks  uint64
	stats  Stats
}

// NewScheduler creates a scheduler. A Capacity below 1 is treated as 1.
func NewScheduler(cfg Config, now func() time.Time) *Scheduler {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Concurrency < 0 {
		cfg.Concurrency = 0
	}
	return &Scheduler{
		cfg:   cfg,
		now:   now,
		queue: make([]*Task, 0, cfg.Capacity),
	}
}

// Submit admits t and reports whether it was accepted.
func (s *Scheduler) Submit(t *Task) bool {
	return s.TrySubmit(t) == nil
}

// TrySubmit admits t, returning ErrInvalidTask for a nil or already
// submitted task and ErrQueueFull when the queue is at capacity.
func (s *Scheduler) TrySubmit(t *Task) error {
	if t == nil || t.phase != Pending {
		s.stats.Rejected++
		return ErrInvalidTask
	}
	if s.live() >= s.cfg.Capacity {
		s.stats.Rejected++
		return ErrQueueFull
	}
	t.phase = Admitted
	s.queue = append(s.queue, t)
	s.stats.Submitted++
	return nil
}

// Tick starts admitted tasks in FIFO order up to the concurrency limit and
// advances every other in-progress task by one step. Tasks that reach a
// terminal phase have had their callback invoked and are removed.
func (s *Scheduler) Tick() {
	if len(s.queue) == 0 {
		return
	}
	s.ticks++
	start := s.now()

	active := 0
	for _, t := range s.queue {
		if t.phase == InProgress {
			active++
		}
	}

	// Admission. Starting a task is its first progress step.
	for _, t := range s.queue {
		if t.phase != Admitted {
			continue
		}
		if s.cfg.Concurrency > 0 && active >= s.cfg.Concurrency {
			break
		}
		t.tick = s.ticks
		t.start(s.now())
		if t.phase == InProgress {
			active++
		}
	}

	// Progress, round-robin from where the last budget-limited tick stopped.
	n := len(s.queue)
	if s.cursor >= n {
		s.cursor = 0
	}
	next := 0
	stepped := 0
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		t := s.queue[idx]
		if t.phase != InProgress || t.tick == s.ticks {
			continue
		}
		if s.cfg.TickBudget > 0 && stepped > 0 && s.now().Sub(start) >= s.cfg.TickBudget {
			next = idx
			break
		}
		t.step(s.now())
		stepped++
	}

	s.reap(next)
}

// reap drops terminal tasks and keeps the resume cursor on the same task.
// Observers run after the queue is rebuilt so they may submit new tasks.
func (s *Scheduler) reap(next int) {
	var resume *Task
	if next < len(s.queue) {
		resume = s.queue[next]
	}
	kept := make([]*Task, 0, s.cfg.Capacity)
	var done []*Task
	s.cursor = 0
	for _, t := range s.queue {
		switch t.phase {
		case Completed:
			s.stats.Completed++
			done = append(done, t)
			continue
		case Failed:
			s.stats.Failed++
			done = append(done, t)
			continue
		}
		if t == resume {
			s.cursor = len(kept)
		}
		kept = append(kept, t)
	}
	s.queue = kept
	for _, t := range done {
		s.finished(t)
	}
}

func (s *Scheduler) finished(t *Task) {
	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(t)
	}
}

// live counts tasks not yet terminal. Finished tasks awaiting reap do not
// hold a slot.
func (s *Scheduler) live() int {
	n := 0
	for _, t := range s.queue {
		if !t.phase.Terminal() {
			n++
		}
	}
	return n
}

// Len returns the number of queued and running tasks.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// Running returns the number of tasks in progress.
func (s *Scheduler) Running() int {
	n := 0
	for _, t := range s.queue {
		if t.phase == InProgress {
			n++
		}
	}
	return n
}

// Capacity returns the configured queue bound.
func (s *Scheduler) Capacity() int {
	return s.cfg.Capacity
}

// Stats returns outcome counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}
