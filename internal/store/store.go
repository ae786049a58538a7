// Package store holds the in-memory snapshot of one resource collection
// and reconciles it against the backend.
//
// A snapshot is only ever replaced wholesale by a successful fetch. Fetches
// for one store are single-flight and sequence-tagged, so a slow response
// can never overwrite a newer snapshot.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campusattend/console/internal/metrics"
	"github.com/campusattend/console/internal/types"
	"github.com/rs/zerolog"
)

// ErrClosed is returned once the store has been torn down.
var ErrClosed = errors.New("store closed")

// Fetcher loads the full collection from the backend.
type Fetcher[T types.Resource] func(ctx context.Context) ([]T, error)

// Snapshot is an immutable view of the collection.
type Snapshot[T types.Resource] struct {
	Items     []T
	Version   uint64
	FetchedAt time.Time
}

// Update is delivered to listeners after every refresh attempt. Err is set
// when the refresh failed; Snapshot is then the unchanged previous one.
type Update[T types.Resource] struct {
	Store    string
	Snapshot Snapshot[T]
	Err      error
}

// Listener receives store updates.
type Listener[T types.Resource] func(Update[T])

// Store caches one resource collection.
type Store[T types.Resource] struct {
	name    string
	fetch   Fetcher[T]
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// sem holds a token while a fetch is outstanding.
	sem    chan struct{}
	issued atomic.Uint64
	closed atomic.Bool

	mu      sync.RWMutex
	snap    Snapshot[T]
	applied uint64

	listenerMu sync.Mutex
	listeners  map[int]Listener[T]
	nextID     int
}

// New creates an empty store.
func New[T types.Resource](name string, fetch Fetcher[T], logger zerolog.Logger) *Store[T] {
	return &Store[T]{
		name:      name,
		fetch:     fetch,
		logger:    logger.With().Str("component", "store").Str("store", name).Logger(),
		now:       time.Now,
		sem:       make(chan struct{}, 1),
		listeners: make(map[int]Listener[T]),
	}
}

// SetMetrics attaches refresh instrumentation.
func (s *Store[T]) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Name returns the resource kind this store holds.
func (s *Store[T]) Name() string {
	return s.name
}

// Snapshot returns the current snapshot. Items is a copy.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Items = clone(snap.Items)
	return snap
}

// All returns a copy of the collection in server order.
func (s *Store[T]) All() []T {
	return s.Snapshot().Items
}

// Version returns the snapshot version; it grows by one per applied refresh.
func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Version
}

// Get looks up a resource by id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.snap.Items {
		if item.ResourceID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// InFlight reports whether a fetch is outstanding.
func (s *Store[T]) InFlight() bool {
	return len(s.sem) > 0
}

// Refresh fetches and applies a new snapshot, waiting for any outstanding
// fetch to finish first.
func (s *Store[T]) Refresh(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()
	return s.load(ctx)
}

// load performs one fetch. It is safe to call concurrently; responses
// older than the last applied one are discarded.
func (s *Store[T]) load(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	seq := s.issued.Add(1)
	items, err := s.fetch(ctx)

	if s.closed.Load() {
		s.logger.Debug().Uint64("seq", seq).Msg("Discarding response for closed store")
		return ErrClosed
	}

	s.mu.Lock()
	if seq <= s.applied {
		version := s.snap.Version
		s.mu.Unlock()
		s.logger.Debug().
			Uint64("seq", seq).
			Uint64("applied", version).
			Msg("Discarding out-of-order response")
		s.metrics.ObserveRefresh(s.name, "stale", version)
		return nil
	}

	if err != nil {
		snap := s.snap
		snap.Items = clone(snap.Items)
		s.mu.Unlock()

		s.logger.Warn().Err(err).Uint64("version", snap.Version).Msg("Refresh failed, keeping previous snapshot")
		s.metrics.ObserveRefresh(s.name, "error", snap.Version)
		s.notify(Update[T]{Store: s.name, Snapshot: snap, Err: err})
		return err
	}

	s.applied = seq
	s.snap = Snapshot[T]{
		Items:     clone(items),
		Version:   s.snap.Version + 1,
		FetchedAt: s.now(),
	}
	snap := s.snap
	snap.Items = clone(snap.Items)
	s.mu.Unlock()

	s.logger.Debug().
		Int("count", len(snap.Items)).
		Uint64("version", snap.Version).
		Msg("Snapshot replaced")
	s.metrics.ObserveRefresh(s.name, "ok", snap.Version)
	s.notify(Update[T]{Store: s.name, Snapshot: snap})
	return nil
}

// Subscribe registers l for updates and returns a function that removes it.
func (s *Store[T]) Subscribe(l Listener[T]) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store[T]) notify(u Update[T]) {
	s.listenerMu.Lock()
	listeners := make([]Listener[T], 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()

	for _, l := range listeners {
		if s.closed.Load() {
			return
		}
		l(u)
	}
}

// Close tears the store down. Outstanding fetches complete but their
// responses are dropped and no listener is called again.
func (s *Store[T]) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.listenerMu.Lock()
	s.listeners = make(map[int]Listener[T])
	s.listenerMu.Unlock()
	s.logger.Debug().Msg("Store closed")
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
