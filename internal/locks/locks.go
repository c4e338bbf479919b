// Package locks provides a keyed mutual-exclusion registry. Each schedule
// or rule id is a mutual-exclusion unit: an execution in progress for an
// id blocks any other attempt to execute or mutate that id until it
// completes. Unrelated ids proceed in parallel.
package locks

import (
	"context"
	"sync"
)

type entry struct {
	done chan struct{}
}

// Registry tracks held locks by key.
type Registry struct {
	mu   sync.Mutex
	held map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{held: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is free or the context is done.
// Every successful Acquire must be paired with a Release.
func (r *Registry) Acquire(ctx context.Context, key string) error {
	for {
		r.mu.Lock()
		e, taken := r.held[key]
		if !taken {
			r.held[key] = &entry{done: make(chan struct{})}
			r.mu.Unlock()
			return nil
		}
		done := e.done
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			// Holder released; race for the lock again.
		}
	}
}

// TryAcquire takes the key's lock if it is free and reports whether it
// did. The execution loop uses this to skip ids already in flight rather
// than queue behind them.
func (r *Registry) TryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.held[key]; taken {
		return false
	}
	r.held[key] = &entry{done: make(chan struct{})}
	return true
}

// Release frees the key's lock and wakes all waiters. Releasing a key
// that is not held is a no-op.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	e := r.held[key]
	delete(r.held, key)
	r.mu.Unlock()
	if e != nil {
		close(e.done)
	}
}
