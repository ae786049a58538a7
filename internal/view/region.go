package view

import (
	"html/template"
	"sync"
)

// Target is where a view writes its markup. Replace swaps the whole
// contents; nothing is ever read back from a target.
type Target interface {
	Replace(markup template.HTML)
}

// RegionUpdate is published whenever a region's contents change.
type RegionUpdate struct {
	Region string
	HTML   template.HTML
	Seq    uint64
}

// Region is an in-memory Target holding the latest fragment of one part of
// the page. Hosts subscribe to push fragments to connected browsers.
type Region struct {
	name string

	mu     sync.RWMutex
	markup template.HTML
	seq    uint64

	listenerMu sync.Mutex
	listeners  map[int]func(RegionUpdate)
	nextID     int
}

// NewRegion creates an empty region.
func NewRegion(name string) *Region {
	return &Region{name: name, listeners: make(map[int]func(RegionUpdate))}
}

// Name returns the region name.
func (r *Region) Name() string {
	return r.name
}

// Replace implements Target.
func (r *Region) Replace(markup template.HTML) {
	r.mu.Lock()
	r.markup = markup
	r.seq++
	u := RegionUpdate{Region: r.name, HTML: markup, Seq: r.seq}
	r.mu.Unlock()

	r.listenerMu.Lock()
	fns := make([]func(RegionUpdate), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenerMu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// HTML returns the current contents.
func (r *Region) HTML() template.HTML {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.markup
}

// Seq counts replacements.
func (r *Region) Seq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Subscribe registers fn for content changes.
func (r *Region) Subscribe(fn func(RegionUpdate)) func() {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.listenerMu.Lock()
		defer r.listenerMu.Unlock()
		delete(r.listeners, id)
	}
}
