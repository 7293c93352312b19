package budget

import (
	"context"
	"errors"
	"sync"
	"time"

	"budgetd/internal/core"
)

// ErrSessionClosed is returned for edits to a session that was closed or
// evicted; its queue no longer writes.
var ErrSessionClosed = errors.New("budget session closed")

// DefaultWindow is the quiescence window before pending edits are written.
const DefaultWindow = time.Second

// PendingEdit is a budget row waiting to be written, with the parent it
// belongs to so it can be laid back onto a freshly loaded tree.
type PendingEdit struct {
	ParentID int64
	Row      core.BudgetRow
}

// FlushFunc writes one batch of edits.
type FlushFunc func(ctx context.Context, edits []PendingEdit) error

// WriteQueue coalesces edits of one session. Edits to the same category
// replace each other; after the window passes with no new edit every pending
// edit goes out in a single FlushFunc call, on the trailing edge only.
type WriteQueue struct {
	window time.Duration
	flush  FlushFunc
	after  func(ctx context.Context)

	mu       sync.Mutex
	pending  map[int64]PendingEdit
	order    []int64
	inflight []PendingEdit
	timer    *time.Timer
	gen      uint64
	stopped  bool

	// writeMu keeps at most one batch in flight.
	writeMu sync.Mutex
}

// NewWriteQueue returns a queue that hands batches to flush once window has
// passed without edits. A non-positive window means DefaultWindow.
func NewWriteQueue(window time.Duration, flush FlushFunc) *WriteQueue {
	if window <= 0 {
		window = DefaultWindow
	}
	return &WriteQueue{
		window:  window,
		flush:   flush,
		pending: make(map[int64]PendingEdit),
	}
}

// AfterFlush registers fn to run after every written batch, once the batch
// no longer counts as pending.
func (q *WriteQueue) AfterFlush(fn func(ctx context.Context)) {
	q.mu.Lock()
	q.after = fn
	q.mu.Unlock()
}

// Enqueue records an edit and restarts the quiescence window.
func (q *WriteQueue) Enqueue(e PendingEdit) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrSessionClosed
	}

	if _, ok := q.pending[e.Row.CategoryID]; !ok {
		q.order = append(q.order, e.Row.CategoryID)
	}
	q.pending[e.Row.CategoryID] = e

	q.gen++
	gen := q.gen
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.window, func() {
		_ = q.fire(context.Background(), gen)
	})
	return nil
}

// Pending returns edits not yet acknowledged by the backend: the batch being
// written first, then queued edits, so later values win when applied in order.
func (q *WriteQueue) Pending() []PendingEdit {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingEdit, 0, len(q.inflight)+len(q.order))
	out = append(out, q.inflight...)
	for _, id := range q.order {
		out = append(out, q.pending[id])
	}
	return out
}

// Len reports the number of queued edits.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Flush writes queued edits now, cancelling the window.
func (q *WriteQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.mu.Unlock()
	return q.fire(ctx, gen)
}

// Stop refuses further edits and flushes what is queued.
func (q *WriteQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	return q.Flush(ctx)
}

func (q *WriteQueue) fire(ctx context.Context, gen uint64) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	if gen != q.gen || len(q.order) == 0 {
		q.mu.Unlock()
		return nil
	}
	batch := make([]PendingEdit, 0, len(q.order))
	for _, id := range q.order {
		batch = append(batch, q.pending[id])
	}
	q.pending = make(map[int64]PendingEdit)
	q.order = nil
	q.inflight = batch
	q.timer = nil
	q.mu.Unlock()

	err := q.flush(ctx, batch)

	q.mu.Lock()
	q.inflight = nil
	after := q.after
	q.mu.Unlock()

	if after != nil {
		after(ctx)
	}
	return err
}
