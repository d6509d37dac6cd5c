package jobpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ifnotnil/jobpool/internal/logging"
)

var (
	ErrWorkerPoolStopped = errors.New("worker pool is stopped")
	ErrNoWorkers         = errors.New("worker pool needs at least one worker")
	ErrNilJob            = errors.New("job is nil")
	ErrMetricsRegistered = errors.New("worker pool metrics already registered")
	ErrJobExited         = errors.New("job exited its goroutine")
)

type Job func()

// WorkerPool runs jobs on a fixed set of goroutines fed by one unbounded FIFO
// queue. Jobs are claimed in submission order; completion order is not
// defined when more than one worker is running.
//
// A WorkerPool must not be copied.
type WorkerPool struct {
	logger       *slog.Logger
	queue        *jobQueue
	metrics      *metrics
	panicHandler func(*PanicError)
	name         string
	workers      int
	workersWG    sync.WaitGroup
	once         sync.Once
}

// NewWorkerPool starts the workers and returns the pool. It does not wait for
// the workers to park.
func NewWorkerPool(opts ...Option) (*WorkerPool, error) {
	c := defaultConfig()

	for _, o := range opts {
		o(&c)
	}

	if c.workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, c.workers)
	}

	m := newMetrics(c.name)
	if c.registerer != nil {
		if err := m.register(c.registerer); err != nil {
			return nil, err
		}
	}

	p := &WorkerPool{
		logger:       c.logger.With(slog.String("pool", c.name)),
		queue:        newJobQueue(),
		metrics:      m,
		panicHandler: c.panicHandler,
		name:         c.name,
		workers:      c.workers,
	}

	logging.Trace(context.Background(), p.logger, "worker pool starting", slog.Int("workers_count", c.workers))

	p.workersWG.Add(c.workers)
	for i := range c.workers {
		go p.worker(i)
	}

	return p, nil
}

// Submit queues job and wakes one idle worker. It never blocks on capacity.
// A job submitted once Stop has begun is dropped without running.
func (p *WorkerPool) Submit(job Job) {
	if job == nil {
		p.logger.Error("nil job submitted")
		return
	}
	p.enqueue(task{job: func() error { job(); return nil }})
}

// SubmitErr queues job and returns a Handle reporting its outcome.
func (p *WorkerPool) SubmitErr(job func() error) *Handle {
	h := newHandle()
	if job == nil {
		h.complete(ErrNilJob)
		return h
	}
	p.enqueue(task{job: job, handle: h})
	return h
}

func (p *WorkerPool) enqueue(t task) {
	p.metrics.queueDepth.Inc()
	if !p.queue.push(t) {
		p.metrics.queueDepth.Dec()
		p.logger.Debug("job submitted to stopped pool was dropped")
		p.drop(t)
		return
	}
	p.metrics.submitted.Inc()
}

func (p *WorkerPool) worker(id int) {
	stopped := false
	defer func() {
		if stopped {
			p.workersWG.Done()
			return
		}
		// a job called runtime.Goexit; the replacement inherits the WaitGroup slot.
		p.logger.Warn("replacing worker", slog.Int("worker_id", id))
		go p.worker(id)
	}()

	for {
		t, ok := p.queue.next()
		if !ok {
			stopped = true
			p.logger.Debug("worker exiting", slog.Int("worker_id", id))
			return
		}
		p.metrics.queueDepth.Dec()
		p.run(id, t)
	}
}

// run executes a claimed task outside the queue lock.
func (p *WorkerPool) run(id int, t task) {
	p.metrics.busy.Inc()
	start := time.Now()

	var err error
	returned := false

	// Deferred so the handle settles even when the job calls runtime.Goexit.
	defer func() {
		if t.handle != nil {
			t.handle.complete(err)
		}
	}()
	defer func() {
		p.metrics.duration.Observe(time.Since(start).Seconds())
		p.metrics.busy.Dec()
		p.metrics.completed.Inc()

		if !returned {
			err = ErrJobExited
			p.logger.Error("job exited its goroutine", p.jobAttrs(id, t)...)
			return
		}
		if pe, ok := err.(*PanicError); ok { //nolint:errorlint // only the recover boundary produces this value
			p.reportPanic(id, t, pe)
		}
	}()

	err = safeRun(t.job)
	returned = true
}

func (p *WorkerPool) jobAttrs(id int, t task) []any {
	attrs := []any{slog.Int("worker_id", id)}
	if t.handle != nil {
		attrs = append(attrs, slog.String("job_id", t.handle.ID().String()))
	}
	return attrs
}

func (p *WorkerPool) reportPanic(id int, t task, pe *PanicError) {
	p.metrics.panicked.Inc()

	attrs := append(p.jobAttrs(id, t),
		slog.Any("panic", pe.Value),
		slog.String("stack", string(pe.Stack)),
	)
	p.logger.Error("job panicked", attrs...)

	if p.panicHandler == nil {
		return
	}
	if err := safeRun(func() error { p.panicHandler(pe); return nil }); err != nil {
		p.logger.Error("panic handler panicked", slog.Int("worker_id", id), slog.Any("error", err))
	}
}

func (p *WorkerPool) drop(t task) {
	p.metrics.dropped.Inc()
	if t.handle != nil {
		t.handle.complete(ErrWorkerPoolStopped)
	}
}

// Stop sets the shutdown flag, drops every job still queued and waits for all
// workers to exit. Running jobs are allowed to finish. Stop is idempotent and
// every caller returns only once shutdown is complete. It must not be called
// from inside a job.
func (p *WorkerPool) Stop(ctx context.Context) {
	p.once.Do(func() { p.close(ctx) })
}

func (p *WorkerPool) close(ctx context.Context) {
	p.logger.InfoContext(ctx, "worker pool shutting down")

	pending := p.queue.shutdown()
	for _, t := range pending {
		p.metrics.queueDepth.Dec()
		p.drop(t)
	}

	p.workersWG.Wait()
	p.logger.InfoContext(ctx, "worker pool shutdown completed", slog.Int("dropped_jobs", len(pending)))
}

func (p *WorkerPool) Workers() int { return p.workers }

// Pending returns the number of jobs waiting to be claimed.
func (p *WorkerPool) Pending() int { return p.queue.size() }

func (p *WorkerPool) Name() string { return p.name }
