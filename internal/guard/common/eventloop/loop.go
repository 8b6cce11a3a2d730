// Package eventloop provides a cooperative, single-threaded execution
// domain. Every callback posted to a Loop runs on the loop's own goroutine,
// one at a time and to completion, so state owned by a loop needs no lock.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a single-goroutine callback queue. The queue is unbounded, so
// Post never blocks, including when called from inside a callback.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
}

// New returns an idle loop. Call Run to start draining callbacks.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. It returns ctx.Err().
// Run may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		panic("eventloop: Run called twice")
	}
	defer func() {
		l.closed.Store(true)
		close(l.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start(ctx context.Context) {
	go func() { _ = l.Run(ctx) }()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn for execution on the loop goroutine. It reports false when
// the loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	if l.closed.Load() {
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Timer is a schedule created by Every or After. Stop is idempotent and may
// be called from any goroutine, including from the timer's own callback.
type Timer struct {
	stopped atomic.Bool
	pending atomic.Bool
	quit    chan struct{}
	once    sync.Once
}

func newTimer() *Timer {
	return &Timer{quit: make(chan struct{})}
}

// Stop cancels the schedule. A tick that was queued but has not yet run is
// discarded.
func (t *Timer) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.quit)
	})
}

// Stopped reports whether Stop has been called.
func (t *Timer) Stopped() bool {
	return t.stopped.Load()
}

// fire posts fn unless a previous tick is still waiting in the queue.
func (t *Timer) fire(l *Loop, fn func()) {
	if !t.pending.CompareAndSwap(false, true) {
		return
	}
	l.Post(func() {
		t.pending.Store(false)
		if t.Stopped() {
			return
		}
		fn()
	})
}

// Every runs fn on the loop every interval until the returned timer is
// stopped or the loop exits. Ticks coalesce: a slow loop sees at most one
// pending tick per timer.
func (l *Loop) Every(interval time.Duration, fn func()) *Timer {
	t := newTimer()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				t.fire(l, fn)
			}
		}
	}()
	return t
}

// After runs fn on the loop once, after d, unless the timer is stopped first.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := newTimer()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.quit:
		case <-l.done:
		case <-timer.C:
			t.fire(l, func() {
				t.Stop()
				fn()
			})
		}
	}()
	return t
}
