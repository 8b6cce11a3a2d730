package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := New()
	l.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	got := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, l.Post(func() { got <- i }))
	}

	for want := 1; want <= 3; want++ {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("callback did not run")
		}
	}
}

func TestLoop_PostFromCallbackDoesNotBlock(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		for i := 0; i < 1000; i++ {
			l.Post(func() {})
		}
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested posts did not drain")
	}
}

func TestLoop_CallbacksNeverOverlap(t *testing.T) {
	l, _ := startLoop(t)

	var running, overlaps int32
	done := make(chan struct{})
	const n = 200
	var finished int32
	for i := 0; i < n; i++ {
		go l.Post(func() {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(10 * time.Microsecond)
			atomic.AddInt32(&running, -1)
			if atomic.AddInt32(&finished, 1) == n {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callbacks did not finish")
	}
	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestLoop_PostAfterStopReturnsFalse(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()
	assert.False(t, l.Post(func() {}))
}

func TestLoop_RunTwicePanics(t *testing.T) {
	l, _ := startLoop(t)
	// give Start's goroutine a chance to claim the loop
	require.Eventually(t, func() bool { return l.started.Load() }, time.Second, time.Millisecond)
	assert.Panics(t, func() { _ = l.Run(context.Background()) })
}

func TestEvery_StopsItselfFromCallback(t *testing.T) {
	l, _ := startLoop(t)

	var ticks int32
	var timer *Timer
	ready := make(chan struct{})
	l.Post(func() {
		timer = l.Every(time.Millisecond, func() {
			if atomic.AddInt32(&ticks, 1) == 3 {
				timer.Stop()
			}
		})
		close(ready)
	})
	<-ready

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))
	assert.True(t, timer.Stopped())
}

func TestAfter_FiresOnceAndCanBeCancelled(t *testing.T) {
	l, _ := startLoop(t)

	var fired, cancelled int32
	t1 := l.After(5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	t2 := l.After(50*time.Millisecond, func() { atomic.AddInt32(&cancelled, 1) })
	t2.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.Zero(t, atomic.LoadInt32(&cancelled))
	assert.True(t, t1.Stopped())
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	tm := newTimer()
	tm.Stop()
	tm.Stop()
	assert.True(t, tm.Stopped())
}
