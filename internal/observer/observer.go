// Package observer is a tiny change-notification registry shared by the store
// and the view controllers.
//
// Listeners take no arguments: on notification they read the current state
// from whoever notified them. That keeps delivery order irrelevant, since a
// listener never acts on a stale snapshot carried by the notification itself.
package observer

import "sync"

// Registry holds listeners. The zero value is ready to use.
type Registry struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func()
	closed    bool
}

// Add registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
// Adding to a closed Registry is a no-op.
func (r *Registry) Add(fn func()) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return func() {}
	}
	if r.listeners == nil {
		r.listeners = make(map[int]func())
	}
	id := r.next
	r.next++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Notify calls every listener. It must be called without holding the
// notifier's own lock, because listeners usually read state back.
func (r *Registry) Notify() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Close drops all listeners and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.listeners = nil
}
