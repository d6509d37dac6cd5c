package jobpool

import "sync"

// compactThreshold is the number of consumed slots after which the backing
// array is shifted down, provided at least half of it is consumed.
const compactThreshold = 64

// task is a queued unit of work. handle is nil for fire-and-forget jobs.
type task struct {
	job    func() error
	handle *Handle
}

// jobQueue is the monitor guarding the pending tasks and the shutdown flag.
// All access goes through push, next and shutdown.
type jobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []task
	head   int
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends t and wakes one parked worker. It reports false when the queue
// has already been shut down, in which case t is not stored.
func (q *jobQueue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, t)
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// next parks until a task is available or the queue is shut down. The second
// return value is false once shutdown is observed; queued tasks are not handed
// out after that point.
func (q *jobQueue) next() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return task{}, false
	}

	t := q.items[q.head]
	q.items[q.head] = task{} // release references held by the backing array.
	q.head++
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t, true
}

// shutdown sets the flag, wakes every parked worker and returns the tasks that
// were never claimed. Only the first call returns tasks.
func (q *jobQueue) shutdown() []task {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	pending := q.items[q.head:]
	q.items = nil
	q.head = 0
	q.cond.Broadcast()
	q.mu.Unlock()

	return pending
}

// size returns the number of unclaimed tasks.
func (q *jobQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count()
}

func (q *jobQueue) count() int { return len(q.items) - q.head }
