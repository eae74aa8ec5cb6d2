package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Job is one unit of background work: a thumbnail render, an analysis
// dispatch, anything that must not block the upload response.
type Job struct {
	Name string
	Fn   func(ctx context.Context)
}

// Scheduler runs jobs on a bounded worker pool fed by a buffered channel.
// Submit never blocks: when the queue is full the job is rejected and the
// caller decides what that means.
type Scheduler struct {
	queue     chan Job
	workerNum int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(queueSize, workerNum int) *Scheduler {
	if queueSize <= 0 {
		queueSize = 100
	}
	if workerNum <= 0 {
		workerNum = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		queue:     make(chan Job, queueSize),
		workerNum: workerNum,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	innerCtx, innerCancel := context.WithCancel(ctx)
	s.ctx = innerCtx
	s.cancel = innerCancel
	s.mu.Unlock()

	s.wg.Add(s.workerNum)
	for i := 0; i < s.workerNum; i++ {
		go s.worker()
	}
}

// Stop drains the pool: no new jobs are accepted, queued and running jobs
// get until ctx expires to finish, then job contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		// out of time: abort whatever is still running
		s.cancel()
		return ctx.Err()
	case <-doneCh:
	}

	s.cancel()
	slog.Info("scheduler: stopped")
	return nil
}

// Submit enqueues a job. Returns false when the scheduler is stopped or the
// queue is full.
func (s *Scheduler) Submit(job Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- job:
		return true
	default:
		return false
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job, ok := <-s.queue:
			if !ok {
				return
			}
			s.run(job)
		}
	}
}

// run shields the pool from a panicking job: one bad background step must
// not take a worker down with it.
func (s *Scheduler) run(job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("scheduler: job panicked",
				slog.String("job", job.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	job.Fn(s.ctx)
}
