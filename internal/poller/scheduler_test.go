package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waiter struct {
	d  time.Duration
	ch chan time.Time
}

func (w waiter) fire() { w.ch <- time.Time{} }

// fakeClock hands every requested timer to the test, which fires it by hand.
type fakeClock struct {
	waiters chan waiter
}

func newFakeClock() *fakeClock {
	return &fakeClock{waiters: make(chan waiter, 64)}
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.waiters <- waiter{d: d, ch: ch}
	return ch
}

func (c *fakeClock) next(t *testing.T) waiter {
	t.Helper()
	select {
	case w := <-c.waiters:
		return w
	case <-time.After(time.Second):
		t.Fatal("scheduler did not arm a timer")
		return waiter{}
	}
}

func (c *fakeClock) idle(t *testing.T) {
	t.Helper()
	select {
	case w := <-c.waiters:
		t.Fatalf("unexpected timer armed for %s", w.d)
	case <-time.After(20 * time.Millisecond):
	}
}

func waitRuns(t *testing.T, runs chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-runs:
		case <-time.After(time.Second):
			t.Fatalf("expected run %d", i+1)
		}
	}
}

func TestFirstTickIsImmediate(t *testing.T) {
	clk := newFakeClock()
	runs := make(chan struct{}, 16)
	s := New("devices", func(context.Context) error {
		runs <- struct{}{}
		return nil
	}, zerolog.Nop(), WithClock(clk))

	s.Start(5 * time.Second)
	defer s.Stop()

	waitRuns(t, runs, 1)
	w := clk.next(t)
	assert.Equal(t, 5*time.Second, w.d)

	w.fire()
	waitRuns(t, runs, 1)
	assert.Equal(t, 5*time.Second, clk.next(t).d)
}

func TestStartIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	var calls atomic.Int32
	s := New("devices", func(context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop(), WithClock(clk))

	s.Start(time.Second)
	s.Start(time.Second)
	s.Start(2 * time.Second)
	defer s.Stop()

	clk.next(t)
	clk.idle(t)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, time.Second, s.Interval())
	assert.True(t, s.Running())
}

func TestStopWithoutStart(t *testing.T) {
	s := New("devices", func(context.Context) error { return nil }, zerolog.Nop())
	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
	assert.False(t, s.Running())
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	s := New("devices", func(context.Context) error { return nil }, zerolog.Nop(), WithClock(newFakeClock()))
	s.Start(0)
	assert.False(t, s.Running())
}

func TestTickSkippedWhileRunInFlight(t *testing.T) {
	clk := newFakeClock()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	s := New("devices", func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, zerolog.Nop(), WithClock(clk))

	s.Start(time.Second)
	defer s.Stop()

	<-started
	clk.next(t).fire()
	clk.next(t).fire()
	clk.next(t)

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, s.InFlight())

	close(release)
	require.Eventually(t, func() bool { return !s.InFlight() }, time.Second, time.Millisecond)
}

func TestStopLeavesInFlightRunAlone(t *testing.T) {
	clk := newFakeClock()
	release := make(chan struct{})
	finished := make(chan error, 1)
	s := New("devices", func(ctx context.Context) error {
		<-release
		finished <- ctx.Err()
		return nil
	}, zerolog.Nop(), WithClock(clk))

	s.Start(time.Second)
	clk.next(t)
	s.Stop()
	assert.False(t, s.Running())
	assert.True(t, s.InFlight())

	close(release)
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("in-flight run never finished")
	}
	clk.idle(t)
}

func TestRestartAfterStop(t *testing.T) {
	clk := newFakeClock()
	runs := make(chan struct{}, 16)
	s := New("devices", func(context.Context) error {
		runs <- struct{}{}
		return nil
	}, zerolog.Nop(), WithClock(clk))

	s.Start(time.Second)
	waitRuns(t, runs, 1)
	clk.next(t)
	s.Stop()

	s.Start(3 * time.Second)
	defer s.Stop()
	waitRuns(t, runs, 1)
	assert.Equal(t, 3*time.Second, clk.next(t).d)
}

func TestBackoffDoublesAndResets(t *testing.T) {
	clk := newFakeClock()
	errDown := errors.New("backend down")
	outcomes := []error{errDown, errDown, errDown, errDown, nil}
	var calls atomic.Int32
	s := New("devices", func(context.Context) error {
		n := int(calls.Add(1)) - 1
		if n < len(outcomes) {
			return outcomes[n]
		}
		return nil
	}, zerolog.Nop(), WithClock(clk), WithBackoff(4*time.Second))

	s.Start(time.Second)
	defer s.Stop()

	// Each run arms the base timer, then a longer one once the failure lands.
	for _, want := range []time.Duration{2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second} {
		assert.Equal(t, time.Second, clk.next(t).d)
		w := clk.next(t)
		assert.Equal(t, want, w.d)
		w.fire()
	}

	assert.Equal(t, time.Second, clk.next(t).d)
	clk.idle(t)
	require.Eventually(t, func() bool { return calls.Load() == 5 }, time.Second, time.Millisecond)
}

func TestBackoffDisabledKeepsInterval(t *testing.T) {
	clk := newFakeClock()
	s := New("devices", func(context.Context) error {
		return errors.New("backend down")
	}, zerolog.Nop(), WithClock(clk))

	s.Start(time.Second)
	defer s.Stop()

	w := clk.next(t)
	assert.Equal(t, time.Second, w.d)
	clk.idle(t)
	w.fire()
	assert.Equal(t, time.Second, clk.next(t).d)
}

func TestBackoffDelay(t *testing.T) {
	s := &Scheduler{backoffMax: 10 * time.Second}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{40, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.backoff(time.Second, tt.failures), "failures=%d", tt.failures)
	}
}
