package jobpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Handle tracks a job submitted with SubmitErr.
type Handle struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

func (h *Handle) ID() uuid.UUID { return h.id }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the outcome, or nil while the job is still pending.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the job is done or ctx ends. It returns the job's error,
// a *PanicError, ErrWorkerPoolStopped when the job was dropped by shutdown, or
// the context error.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for job %s: %w", h.id, ctx.Err())
	}
}

func (h *Handle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// WaitAll waits for every handle and combines their errors. It returns early
// with the context error if ctx ends first.
func WaitAll(ctx context.Context, handles ...*Handle) error {
	var errs error
	for _, h := range handles {
		if h == nil {
			continue
		}
		select {
		case <-h.done:
			errs = multierr.Append(errs, h.err)
		case <-ctx.Done():
			return multierr.Append(errs, ctx.Err())
		}
	}
	return errs
}
