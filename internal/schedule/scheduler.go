// Package schedule runs orbit's background jobs: the health probe, the
// board refresh and the local connectivity poll. Each job owns a goroutine,
// so a slow job never delays another one.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of scheduled work. It must honor ctx cancellation.
type Job func(ctx context.Context)

// JobOption tweaks a registered job.
type JobOption func(*job)

// RunImmediately runs the job once as soon as it starts, before the first
// tick.
func RunImmediately() JobOption {
	return func(j *job) { j.immediate = true }
}

type job struct {
	name      string
	interval  time.Duration
	immediate bool
	run       Job
	trigger   chan struct{}
}

// Scheduler drives jobs from a Clock. Jobs are periodic (interval > 0),
// trigger-only (interval == 0), or both.
type Scheduler struct {
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New builds a scheduler. A nil clock uses the wall clock.
func New(clock Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Clock returns the clock driving this scheduler.
func (s *Scheduler) Clock() Clock { return s.clock }

// Every registers a job. Registering after Start launches it right away.
// Names must be unique.
func (s *Scheduler) Every(name string, interval time.Duration, run Job, opts ...JobOption) error {
	if interval < 0 {
		return fmt.Errorf("schedule %s: negative interval %s", name, interval)
	}
	j := &job{name: name, interval: interval, run: run, trigger: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("schedule %s: already registered", name)
	}
	s.jobs[name] = j
	if s.started {
		s.launch(j)
	}
	return nil
}

// Trigger asks a job to run as soon as its goroutine is free. Triggers
// arriving while one is already queued coalesce. It reports whether the job
// exists.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case j.trigger <- struct{}{}:
	default:
	}
	return true
}

// Start launches every registered job. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	for _, j := range s.jobs {
		s.launch(j)
	}
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}

// launch must be called with s.mu held.
func (s *Scheduler) launch(j *job) {
	s.wg.Add(1)
	ctx := s.ctx
	go s.loop(ctx, j)
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if j.interval > 0 {
		ticker := s.clock.NewTicker(j.interval)
		defer ticker.Stop()
		tick = ticker.C()
	}
	if j.immediate {
		s.runJob(ctx, j)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.runJob(ctx, j)
		case <-j.trigger:
			s.runJob(ctx, j)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	j.run(ctx)
}
