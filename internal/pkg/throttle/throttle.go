// Package throttle serializes outbound calls to a rate-limited third
// party. Work is executed strictly one at a time in submission order,
// with a minimum delay between the completion of one call and the
// start of the next. Each external dependency gets its own Throttle
// instance; there is no shared global.
package throttle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Do after Close has been called.
var ErrClosed = errors.New("throttle closed")

// Func is a unit of throttled work.
type Func func(ctx context.Context) error

type task struct {
	ctx context.Context
	fn  Func
	err chan error
}

// Throttle runs submitted work on a single worker goroutine.
type Throttle struct {
	interval  time.Duration
	tasks     chan *task
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Throttle and starts its worker. interval is the minimum
// delay between the end of one call and the start of the next.
func New(interval time.Duration, queueSize int) *Throttle {
	if queueSize <= 0 {
		queueSize = 64
	}
	t := &Throttle{
		interval: interval,
		tasks:    make(chan *task, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.worker()
	return t
}

// Do submits fn and blocks until it has run or ctx is cancelled.
// Submissions are served FIFO. A failed call still consumes its queue
// slot and the spacing delay is still honored before the next item.
func (t *Throttle) Do(ctx context.Context, fn Func) error {
	tk := &task{ctx: ctx, fn: fn, err: make(chan error, 1)}

	select {
	case <-t.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.tasks <- tk:
	}

	select {
	case err := <-tk.err:
		return err
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLen reports how many submissions are waiting to run.
func (t *Throttle) QueueLen() int {
	return len(t.tasks)
}

// Close stops the worker. Queued work that has not started is failed
// with ErrClosed.
func (t *Throttle) Close() {
	t.closeOnce.Do(func() { close(t.quit) })
	<-t.done
}

func (t *Throttle) worker() {
	defer close(t.done)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-t.quit:
			return
		case tk := <-t.tasks:
			if tk.ctx.Err() != nil {
				// Never started; no spacing owed.
				tk.err <- tk.ctx.Err()
				continue
			}

			tk.err <- tk.fn(tk.ctx)

			timer.Reset(t.interval)
			select {
			case <-timer.C:
			case <-t.quit:
				return
			}
		}
	}
}
