// Package poller runs a job on a fixed interval without ever overlapping
// two runs of it.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campusattend/console/internal/metrics"
	"github.com/rs/zerolog"
)

// Job is the unit of work run on every tick.
type Job func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithBackoff enables exponential backoff after failed runs. Consecutive
// failures double the wait, capped at max. It has no effect unless max is
// larger than the interval.
func WithBackoff(max time.Duration) Option {
	return func(s *Scheduler) { s.backoffMax = max }
}

// WithMetrics records ticks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler fires a job periodically. A tick that arrives while the previous
// run is still going is dropped, not queued.
type Scheduler struct {
	name       string
	job        Job
	clock      Clock
	backoffMax time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	inFlight atomic.Bool

	mu       sync.Mutex
	running  bool
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates a stopped scheduler.
func New(name string, job Job, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:   name,
		job:    job,
		clock:  RealClock,
		logger: logger.With().Str("component", "poller").Str("scheduler", name).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking. The first tick fires immediately. Calling Start on a
// running scheduler does nothing.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().Msg("Scheduler already running")
		return
	}
	if interval <= 0 {
		s.logger.Error().Dur("interval", interval).Msg("Refusing to start with non-positive interval")
		return
	}

	s.running = true
	s.interval = interval
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info().
		Dur("interval", interval).
		Dur("backoff_max", s.backoffMax).
		Msg("Scheduler started")

	go s.loop(interval, s.stop, s.done)
}

// Stop halts future ticks and waits for the tick loop to exit. A run already
// in progress is left to finish. Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.logger.Info().Msg("Scheduler stopped")
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the base interval of the current run.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// InFlight reports whether a run is in progress.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	results := make(chan error, 1)
	failures := 0

	for {
		s.tick(results, stop)
		wait := s.clock.After(interval)

	waiting:
		for {
			select {
			case <-stop:
				return
			case <-wait:
				break waiting
			case err := <-results:
				if err == nil {
					if failures > 0 {
						s.logger.Info().Int("failures", failures).Msg("Job recovered")
					}
					failures = 0
					continue
				}
				failures++
				if delay := s.backoff(interval, failures); delay > interval {
					s.logger.Warn().
						Err(err).
						Int("failures", failures).
						Dur("retry_in", delay).
						Msg("Job failed, backing off")
					wait = s.clock.After(delay)
				} else {
					s.logger.Warn().Err(err).Int("failures", failures).Msg("Job failed")
				}
			}
		}
	}
}

func (s *Scheduler) tick(results chan<- error, stop <-chan struct{}) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("Previous run still in flight, skipping tick")
		s.metrics.ObserveTick(s.name, "skipped")
		return
	}
	s.metrics.ObserveTick(s.name, "run")

	go func() {
		err := s.job(context.Background())
		s.inFlight.Store(false)
		select {
		case results <- err:
		case <-stop:
		}
	}()
}

// backoff returns the wait after the given number of consecutive failures.
func (s *Scheduler) backoff(interval time.Duration, failures int) time.Duration {
	if s.backoffMax <= interval {
		return interval
	}
	delay := interval
	for i := 0; i < failures && delay < s.backoffMax; i++ {
		delay *= 2
	}
	if delay > s.backoffMax {
		delay = s.backoffMax
	}
	return delay
}
