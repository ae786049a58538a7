// Package view binds a resource store to a page region: it renders the
// store's snapshot into the region whenever it changes and runs the
// operator's actions against the store.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/campusattend/console/internal/notifier"
	"github.com/campusattend/console/internal/store"
	"github.com/campusattend/console/internal/types"
	"github.com/rs/zerolog"
)

// ErrActionPending rejects an action on a resource whose previous action
// has not finished.
var ErrActionPending = errors.New("another action is still pending for this item")

// AlertSource supplies the current alert list.
type AlertSource interface {
	Alerts() ([]types.Alert, uint64)
	Subscribe(fn func()) func()
}

// Notifier shows transient action outcomes.
type Notifier interface {
	Notify(view string, level notifier.Level, message string) notifier.Notification
}

// Config describes one bound view.
type Config[T types.Resource] struct {
	Name     string
	Store    *store.Store[T]
	Target   Target
	Render   Renderer[T]
	Alerts   AlertSource
	Notifier Notifier
	// LoadFailure phrases a failed refresh for the operator.
	LoadFailure func(err error) string
}

// Action is one operator-triggered write.
type Action struct {
	ResourceID string
	Mutation   store.Mutation
	Success    string
	Failure    func(err error) string
}

type renderKey struct {
	items  uint64
	alerts uint64
}

// Binder keeps a Target in sync with a store.
type Binder[T types.Resource] struct {
	cfg    Config[T]
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	lastKey  renderKey
	rendered bool
	closed   bool

	pendingMu sync.Mutex
	pending   map[string]struct{}

	unsubscribe []func()

	listenerMu sync.Mutex
	listeners  map[int]func(StateChange)
	nextID     int
}

// New binds cfg.Store to cfg.Target. Nothing is rendered until the first
// load completes.
func New[T types.Resource](cfg Config[T], logger zerolog.Logger) *Binder[T] {
	if cfg.LoadFailure == nil {
		cfg.LoadFailure = func(error) string { return "Failed to load " + cfg.Name }
	}
	b := &Binder[T]{
		cfg:       cfg,
		logger:    logger.With().Str("component", "view").Str("view", cfg.Name).Logger(),
		pending:   make(map[string]struct{}),
		listeners: make(map[int]func(StateChange)),
	}

	b.unsubscribe = append(b.unsubscribe, cfg.Store.Subscribe(b.onUpdate))
	if cfg.Alerts != nil {
		b.unsubscribe = append(b.unsubscribe, cfg.Alerts.Subscribe(b.onAlerts))
	}
	return b
}

// Name returns the view name.
func (b *Binder[T]) Name() string {
	return b.cfg.Name
}

// State returns the current lifecycle state.
func (b *Binder[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Load refreshes the store and renders the result.
func (b *Binder[T]) Load(ctx context.Context) error {
	if !b.begin() {
		return store.ErrClosed
	}

	err := b.cfg.Store.Refresh(ctx)
	b.settle(err)
	return err
}

// settle finishes a load the store did not report through onUpdate, such
// as a cancelled wait or a discarded stale response.
func (b *Binder[T]) settle(err error) {
	b.mu.Lock()
	stillLoading := b.state == StateLoading && !b.closed
	b.mu.Unlock()
	if !stillLoading || errors.Is(err, store.ErrClosed) {
		return
	}
	if err != nil {
		b.fail(err)
	} else {
		b.render()
	}
}

func (b *Binder[T]) begin() bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	changes := b.transition(StateLoading, nil)
	b.mu.Unlock()
	b.publish(changes)
	return true
}

// Act runs a write against the store and reports the outcome.
func (b *Binder[T]) Act(ctx context.Context, a Action) error {
	key := a.ResourceID
	if key == "" {
		key = a.Mutation.Op.String()
	}

	b.pendingMu.Lock()
	if _, busy := b.pending[key]; busy {
		b.pendingMu.Unlock()
		b.logger.Debug().Str("id", a.ResourceID).Str("op", a.Mutation.Op.String()).Msg("Action rejected, previous one still pending")
		b.notify(notifier.LevelWarning, "Please wait, the previous action on this item is still in progress")
		return ErrActionPending
	}
	b.pending[key] = struct{}{}
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, key)
		b.pendingMu.Unlock()
	}()

	// The follow-up refresh moves the view back through Loading.
	m := a.Mutation
	applied := m.Applied
	began := false
	m.Applied = func() {
		if applied != nil {
			applied()
		}
		began = b.begin()
	}

	err := b.cfg.Store.Mutate(ctx, m)
	if began {
		b.settle(err)
	}
	if err != nil {
		msg := err.Error()
		if a.Failure != nil {
			msg = a.Failure(err)
		}
		b.notify(notifier.LevelError, msg)
		return err
	}

	if a.Success != "" {
		b.notify(notifier.LevelSuccess, a.Success)
	}
	return nil
}

func (b *Binder[T]) isPending(id string) bool {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// Subscribe registers fn for state changes.
func (b *Binder[T]) Subscribe(fn func(StateChange)) func() {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.listenerMu.Lock()
		defer b.listenerMu.Unlock()
		delete(b.listeners, id)
	}
}

// Close detaches the binder. The target is not touched again.
func (b *Binder[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	for _, fn := range b.unsubscribe {
		fn()
	}
}

func (b *Binder[T]) onUpdate(u store.Update[T]) {
	if u.Err != nil {
		b.fail(u.Err)
		return
	}
	b.render()
}

func (b *Binder[T]) onAlerts() {
	b.mu.Lock()
	rendered := b.state == StateRendered
	b.mu.Unlock()

	// Alerts on top of a failed or pending load wait for that load.
	if rendered {
		b.render()
	}
}

func (b *Binder[T]) fail(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	changes := b.transition(StateError, err)
	b.mu.Unlock()

	b.logger.Warn().Err(err).Msg("View load failed, keeping previous contents")
	b.publish(changes)
	b.notify(notifier.LevelError, b.cfg.LoadFailure(err))
}

// render draws the current snapshot unless the same inputs were already drawn.
func (b *Binder[T]) render() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	snap := b.cfg.Store.Snapshot()
	var alerts []types.Alert
	var alertsVersion uint64
	if b.cfg.Alerts != nil {
		alerts, alertsVersion = b.cfg.Alerts.Alerts()
	}
	key := renderKey{items: snap.Version, alerts: alertsVersion}

	if b.rendered && key == b.lastKey && b.state == StateRendered {
		b.mu.Unlock()
		return
	}

	markup, err := b.cfg.Render(snap.Items, alerts)
	if err != nil {
		changes := b.transition(StateError, err)
		b.mu.Unlock()
		b.logger.Error().Err(err).Msg("Render failed")
		b.publish(changes)
		return
	}

	b.cfg.Target.Replace(markup)
	b.lastKey = key
	b.rendered = true
	changes := b.transition(StateRendered, nil)
	b.mu.Unlock()

	b.logger.Debug().
		Uint64("version", snap.Version).
		Uint64("alerts_version", alertsVersion).
		Int("items", len(snap.Items)).
		Msg("View rendered")
	b.publish(changes)
}

// transition moves to the target state, passing through Loading when the
// direct move is not allowed. It must be called with b.mu held and returns
// the changes to publish once the lock is released.
func (b *Binder[T]) transition(to State, err error) []StateChange {
	var changes []StateChange
	step := func(next State) {
		if next == b.state {
			return
		}
		change := StateChange{View: b.cfg.Name, From: b.state.String(), To: next.String()}
		if err != nil && next == StateError {
			change.Err = err.Error()
		}
		b.state = next
		changes = append(changes, change)
	}

	if !CanTransition(b.state, to) {
		step(StateLoading)
	}
	step(to)
	return changes
}

func (b *Binder[T]) publish(changes []StateChange) {
	if len(changes) == 0 {
		return
	}
	b.listenerMu.Lock()
	fns := make([]func(StateChange), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.listenerMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

func (b *Binder[T]) notify(level notifier.Level, message string) {
	if b.cfg.Notifier == nil {
		return
	}
	b.cfg.Notifier.Notify(b.cfg.Name, level, message)
}
