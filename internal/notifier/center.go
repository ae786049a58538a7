// Package notifier manages the transient notifications that report the
// outcome of console actions. Every notification dismisses itself after a
// fixed display time.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/campusattend/console/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDisplay is how long a notification stays up.
const DefaultDisplay = 3 * time.Second

// Level is the notification style.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one transient message.
type Notification struct {
	ID        string    `json:"id"`
	View      string    `json:"view,omitempty"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventKind tells listeners whether a notification appeared or went away.
type EventKind string

const (
	EventShown     EventKind = "notify"
	EventDismissed EventKind = "dismiss"
)

// Event is delivered to listeners.
type Event struct {
	Kind         EventKind    `json:"type"`
	Notification Notification `json:"notification"`
}

// Center tracks active notifications and their dismiss timers.
type Center struct {
	log     zerolog.Logger
	display time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	active  []Notification
	timers  map[string]context.CancelFunc
	stopped bool

	listenerMu sync.Mutex
	listeners  map[int]func(Event)
	nextID     int
}

// New creates a notification center. A non-positive display falls back to
// DefaultDisplay.
func New(log zerolog.Logger, display time.Duration) *Center {
	if display <= 0 {
		display = DefaultDisplay
	}
	return &Center{
		log:       log.With().Str("component", "notifier").Logger(),
		display:   display,
		timers:    make(map[string]context.CancelFunc),
		listeners: make(map[int]func(Event)),
	}
}

// SetMetrics attaches notification counters.
func (c *Center) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Display returns the display time.
func (c *Center) Display() time.Duration {
	return c.display
}

// Notify shows a message and schedules its dismissal.
func (c *Center) Notify(view string, level Level, message string) Notification {
	now := time.Now()
	n := Notification{
		ID:        uuid.NewString(),
		View:      view,
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.display),
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.log.Debug().Str("message", message).Msg("Notifier stopped, dropping notification")
		return n
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.timers[n.ID] = cancel
	c.active = append(c.active, n)
	c.mu.Unlock()

	c.log.Debug().
		Str("id", n.ID).
		Str("view", view).
		Str("level", string(level)).
		Str("message", message).
		Msg("Notification shown")
	c.metrics.ObserveNotification(string(level))
	c.emit(Event{Kind: EventShown, Notification: n})

	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(c.display):
			c.Dismiss(n.ID)
		}
	}()
	return n
}

// Error shows an error notification.
func (c *Center) Error(view, message string) Notification {
	return c.Notify(view, LevelError, message)
}

// Dismiss removes a notification early. It reports whether it was active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	cancel, ok := c.timers[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	cancel()
	delete(c.timers, id)

	var n Notification
	for i, a := range c.active {
		if a.ID == id {
			n = a
			c.active = append(c.active[:i:i], c.active[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.log.Debug().Str("id", id).Msg("Notification dismissed")
	c.emit(Event{Kind: EventDismissed, Notification: n})
	return true
}

// Active returns the notifications currently shown, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

// Subscribe registers fn for events and returns a function that removes it.
func (c *Center) Subscribe(fn func(Event)) func() {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Center) emit(e Event) {
	c.listenerMu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Stop cancels all pending timers. Later notifications are dropped.
func (c *Center) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for id, cancel := range c.timers {
		cancel()
		delete(c.timers, id)
	}
	c.active = nil
}
