package scheduler

import (
	"sync"
)

// Task is a zero-argument unit of asynchronous work. A task is owned by the
// scheduler from submission until it settles.
type Task func() (any, error)

// Result is delivered to the completion callback for every settled task,
// successful or not.
type Result struct {
	Value any
	Err   error
}

// Scheduler executes submitted tasks with bounded concurrency and fail-fast
// semantics. Tasks start in FIFO submission order; completion order is
// unconstrained. After the first task failure no queued or newly submitted
// task is started, but tasks already running are allowed to finish.
//
// All state is owned by the instance; nothing is shared across schedulers.
// Only one Wait caller per instance is supported.
type Scheduler struct {
	mu         sync.Mutex
	cond       *sync.Cond
	limit      int
	onComplete func(Result)

	queue     []Task
	running   int
	callbacks int
	err       error
}

// New creates a scheduler running at most limit tasks concurrently.
// onComplete, if non-nil, is invoked asynchronously for every settled task;
// Wait does not return until every invocation has itself finished.
func New(limit int, onComplete func(Result)) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	s := &Scheduler{
		limit:      limit,
		onComplete: onComplete,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Submit queues a task for execution. After a failure has been captured the
// task is silently discarded: early termination is preferred over
// completeness. Submit never returns or panics with a task error; failures
// surface only through Wait.
func (s *Scheduler) Submit(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return
	}
	s.queue = append(s.queue, task)
	s.dispatchLocked()
}

// Failed reports whether a task failure has been captured. Driving loops
// use this as an explicit abort signal to stop producing work.
func (s *Scheduler) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// Wait blocks until the queue is empty, no task is running and every
// outstanding completion callback has settled, then returns the first
// captured task error, if any.
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 || s.running > 0 || s.callbacks > 0 {
		s.cond.Wait()
	}
	return s.err
}

// dispatchLocked starts queued tasks while slots are free. Caller holds mu.
func (s *Scheduler) dispatchLocked() {
	for s.err == nil && s.running < s.limit && len(s.queue) > 0 {
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.running++
		go s.run(task)
	}
}

func (s *Scheduler) run(task Task) {
	value, err := task()

	s.mu.Lock()
	if err != nil && s.err == nil {
		// First failure: capture it and drop everything still queued.
		s.err = err
		s.queue = nil
	}
	if s.onComplete != nil {
		s.callbacks++
		go s.notify(Result{Value: value, Err: err})
	}
	s.running--
	s.dispatchLocked()
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Scheduler) notify(res Result) {
	s.onComplete(res)

	s.mu.Lock()
	s.callbacks--
	s.cond.Broadcast()
	s.mu.Unlock()
}
