// Package queue implements the in-process dispatch scheduler: typed FIFO job
// queues with bounded retries and exponential backoff.
package queue

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// JobType names one queue. Each type gets its own FIFO worker.
type JobType string

const (
	// JobSendMessage delivers an outreach message through the provider.
	JobSendMessage JobType = "send_message"
	// JobAIReply generates and sends an auto-reply to an inbound message.
	JobAIReply JobType = "ai_reply"
)

// JobState tracks a job through its lifecycle.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateActive    JobState = "active"
	StateRetrying  JobState = "retrying"
	StateSucceeded JobState = "succeeded"
	StateExhausted JobState = "exhausted"
)

// Handler processes one job payload. A returned error triggers a retry until
// the job's attempt budget runs out.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Job is a snapshot of one queued unit of work.
type Job struct {
	ID          string
	Type        JobType
	Payload     json.RawMessage
	Attempts    int // attempts completed so far
	MaxAttempts int
	State       JobState
	LastError   string
	EnqueuedAt  time.Time
}

// Stats summarizes one queue.
type Stats struct {
	Queued    int
	Active    int
	Retrying  int
	Succeeded int
	Exhausted int
}

type registration struct {
	handler     Handler
	maxAttempts int
	ch          chan *Job
}

// Scheduler owns one worker goroutine per registered job type. Jobs within a
// type run strictly in FIFO order; types run independently.
type Scheduler struct {
	mu          sync.Mutex
	regs        map[JobType]*registration
	jobs        map[string]*Job
	backoffBase time.Duration

	pending sync.WaitGroup
	workers sync.WaitGroup
	cancel  context.CancelFunc
	started bool

	// afterFunc schedules delayed (re-)enqueues; tests override it.
	afterFunc func(d time.Duration, f func())
}

// NewScheduler creates a Scheduler. backoffBase is the first retry delay;
// each further retry doubles it. Default: 2s.
func NewScheduler(backoffBase time.Duration) *Scheduler {
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	return &Scheduler{
		regs:        make(map[JobType]*registration),
		jobs:        make(map[string]*Job),
		backoffBase: backoffBase,
		afterFunc:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Register binds a handler to a job type. maxAttempts is the default attempt
// budget for jobs of this type (minimum 1). Must be called before Start.
func (s *Scheduler) Register(t JobType, maxAttempts int, h Handler) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[t] = &registration{
		handler:     h,
		maxAttempts: maxAttempts,
		ch:          make(chan *Job, 1024),
	}
}

// Start launches one worker per registered type. Workers stop when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for t, reg := range s.regs {
		s.workers.Add(1)
		go s.work(ctx, t, reg)
	}
}

// Stop cancels the workers and waits for them to exit. In-flight handlers
// see a cancelled context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.workers.Wait()
}

// Drain blocks until every enqueued job reaches a terminal state.
func (s *Scheduler) Drain() {
	s.pending.Wait()
}

// EnqueueOption configures one Enqueue call.
type EnqueueOption func(*enqueueOpts)

type enqueueOpts struct {
	delay       time.Duration
	maxAttempts int
}

// WithDelay holds the job back for d before its first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOpts) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithMaxAttempts overrides the type's default attempt budget.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOpts) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// Enqueue adds a job and returns its id. payload is marshalled to JSON.
func (s *Scheduler) Enqueue(t JobType, payload any, opts ...EnqueueOption) (string, error) {
	s.mu.Lock()
	reg, ok := s.regs[t]
	s.mu.Unlock()
	if !ok {
		return "", eris.Errorf("queue: no handler registered for %s", t)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrapf(err, "queue: marshal %s payload", t)
	}

	o := enqueueOpts{maxAttempts: reg.maxAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	job := &Job{
		ID:          uuid.New().String(),
		Type:        t,
		Payload:     data,
		MaxAttempts: o.maxAttempts,
		State:       StateQueued,
		EnqueuedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	s.pending.Add(1)

	if o.delay > 0 {
		s.afterFunc(o.delay, func() { reg.ch <- job })
	} else {
		reg.ch <- job
	}
	return job.ID, nil
}

func (s *Scheduler) work(ctx context.Context, t JobType, reg *registration) {
	defer s.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-reg.ch:
			s.runJob(ctx, job, reg)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job, reg *registration) {
	s.setState(job, StateActive)

	err := reg.handler(ctx, job.Payload)

	s.mu.Lock()
	job.Attempts++
	s.mu.Unlock()

	if err == nil {
		s.setState(job, StateSucceeded)
		s.pending.Done()
		return
	}

	s.mu.Lock()
	job.LastError = err.Error()
	attempts := job.Attempts
	s.mu.Unlock()

	if attempts >= job.MaxAttempts || ctx.Err() != nil {
		s.setState(job, StateExhausted)
		s.pending.Done()
		zap.L().Error("job exhausted retries",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}

	delay := s.backoff(attempts)
	s.setState(job, StateRetrying)
	zap.L().Warn("job failed, scheduling retry",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("attempt", attempts),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	s.afterFunc(delay, func() { reg.ch <- job })
}

// backoff returns the delay before the next attempt: base * 2^(attempts-1).
func (s *Scheduler) backoff(attempts int) time.Duration {
	return time.Duration(float64(s.backoffBase) * math.Pow(2, float64(attempts-1)))
}

func (s *Scheduler) setState(job *Job, state JobState) {
	s.mu.Lock()
	job.State = state
	s.mu.Unlock()
}

// Job returns a snapshot of the job with the given id.
func (s *Scheduler) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Stats returns per-type queue counters.
func (s *Scheduler) Stats() map[JobType]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[JobType]Stats, len(s.regs))
	for t := range s.regs {
		out[t] = Stats{}
	}
	for _, job := range s.jobs {
		st := out[job.Type]
		switch job.State {
		case StateQueued:
			st.Queued++
		case StateActive:
			st.Active++
		case StateRetrying:
			st.Retrying++
		case StateSucceeded:
			st.Succeeded++
		case StateExhausted:
			st.Exhausted++
		}
		out[job.Type] = st
	}
	return out
}

// Failed returns snapshots of jobs that ran out of attempts.
func (s *Scheduler) Failed() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Job
	for _, job := range s.jobs {
		if job.State == StateExhausted {
			out = append(out, *job)
		}
	}
	return out
}
