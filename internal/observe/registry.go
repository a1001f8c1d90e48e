// Package observe shares one running execution between every listener that
// asks for the same key.
package observe

import (
	"sync"
	"sync/atomic"
)

// Listener receives data and errors from an execution.
type Listener[T any] struct {
	OnData  func(T)
	OnError func(error)
}

// Emitter is handed to an execution to fan values out to its listeners.
type Emitter[T any] interface {
	Data(T)
	Error(error)
}

// StartFunc launches the execution for a key and returns its stop function.
// It is called once per group, outside the registry lock.
type StartFunc[T any] func(emit Emitter[T]) (stop func())

// Registry tracks one group of listeners per key.
type Registry[T any] struct {
	mu     sync.Mutex
	groups map[string]*group[T]
}

type group[T any] struct {
	key       string
	listeners []*entry[T]
	stop      func()
	started   bool
	closed    bool
}

type entry[T any] struct {
	listener Listener[T]
	removed  atomic.Bool
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{groups: make(map[string]*group[T])}
}

// Observe registers a listener under key. The first listener for a key
// starts the execution; later ones join it. The returned function removes
// this listener and may be called any number of times.
func (r *Registry[T]) Observe(key string, listener Listener[T], start StartFunc[T]) (unsubscribe func()) {
	e := &entry[T]{listener: listener}

	r.mu.Lock()
	g, ok := r.groups[key]
	if !ok {
		g = &group[T]{key: key}
		r.groups[key] = g
	}
	g.listeners = append(g.listeners, e)
	first := !g.started
	g.started = true
	r.mu.Unlock()

	if first {
		stop := start(&emitter[T]{registry: r, group: g})

		r.mu.Lock()
		closed := g.closed
		if !closed {
			g.stop = stop
		}
		r.mu.Unlock()

		if closed && stop != nil {
			stop()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(g, e) })
	}
}

func (r *Registry[T]) remove(g *group[T], e *entry[T]) {
	r.mu.Lock()
	e.removed.Store(true)
	for i, candidate := range g.listeners {
		if candidate == e {
			g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
			break
		}
	}
	if len(g.listeners) > 0 || g.closed {
		r.mu.Unlock()
		return
	}

	g.closed = true
	if r.groups[g.key] == g {
		delete(r.groups, g.key)
	}
	stop := g.stop
	g.stop = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Listeners returns the number of listeners registered under key.
func (r *Registry[T]) Listeners(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[key]; ok {
		return len(g.listeners)
	}
	return 0
}

// Groups returns the number of live groups.
func (r *Registry[T]) Groups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

func (r *Registry[T]) snapshot(g *group[T]) []*entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.closed {
		return nil
	}
	out := make([]*entry[T], len(g.listeners))
	copy(out, g.listeners)
	return out
}

type emitter[T any] struct {
	registry *Registry[T]
	group    *group[T]
}

func (e *emitter[T]) Data(value T) {
	for _, listener := range e.registry.snapshot(e.group) {
		if listener.removed.Load() || listener.listener.OnData == nil {
			continue
		}
		listener.listener.OnData(value)
	}
}

func (e *emitter[T]) Error(err error) {
	for _, listener := range e.registry.snapshot(e.group) {
		if listener.removed.Load() || listener.listener.OnError == nil {
			continue
		}
		listener.listener.OnError(err)
	}
}
