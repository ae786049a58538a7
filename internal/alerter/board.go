package alerter

import (
	"sync"

	"github.com/campusattend/console/internal/types"
)

// Board holds the alert list from the most recent derivation. Each
// Publish replaces the list and bumps the version.
type Board struct {
	mu      sync.RWMutex
	alerts  []types.Alert
	version uint64

	listenerMu sync.Mutex
	listeners  map[int]func()
	nextID     int
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{listeners: make(map[int]func())}
}

// Publish replaces the current alerts.
func (b *Board) Publish(alerts []types.Alert) {
	b.mu.Lock()
	b.alerts = append([]types.Alert(nil), alerts...)
	b.version++
	b.mu.Unlock()

	b.listenerMu.Lock()
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Alerts returns a copy of the current alerts and their version.
func (b *Board) Alerts() ([]types.Alert, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]types.Alert(nil), b.alerts...), b.version
}

// Subscribe registers fn to run after every Publish.
func (b *Board) Subscribe(fn func()) func() {
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
