package alert

import (
	"sync"

	logx "alertbot/pkg/logx"
)

// Trigger is a cancellable firing mechanism bound to one alert. Stop must be
// idempotent.
type Trigger interface {
	Stop()
}

// Registry maps alert id -> live trigger handle and guarantees at most one
// active handle per id. Removal stops the handle as part of the same
// operation, so a handle returned from the registry is never live outside it.
type Registry struct {
	mu      sync.Mutex
	log     logx.Logger
	handles map[int64]Trigger
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{log: log, handles: map[int64]Trigger{}}
}

// Set installs the handle for id. A second Set before a Remove violates the
// scheduler's contract; if it ever happens the prior handle is stopped before
// being overwritten so no live timer leaks.
func (r *Registry) Set(id int64, t Trigger) {
	r.mu.Lock()
	prev, ok := r.handles[id]
	r.handles[id] = t
	r.mu.Unlock()
	if ok {
		prev.Stop()
		r.log.Error("duplicate trigger handle replaced; this should never happen", logx.Int64("alert_id", id))
	}
}

func (r *Registry) Get(id int64) (Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.handles[id]
	return t, ok
}

// Remove stops and discards the handle for id. It reports whether a handle
// was present, which makes it the single arbiter between firing-retirement
// and explicit removal: whichever path removes first wins, the other becomes
// a no-op.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	t, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	r.mu.Unlock()
	if ok {
		t.Stop()
	}
	return ok
}

// Clear stops and discards every handle. Used at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	handles := r.handles
	r.handles = map[int64]Trigger{}
	r.mu.Unlock()
	for _, t := range handles {
		t.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
