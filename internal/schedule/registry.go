package schedule

import (
	"sync"

	"github.com/google/uuid"
)

// registry holds the armed timer of every pending job this process knows about (thread-safe).
type registry struct {
	mu     sync.Mutex
	timers map[uuid.UUID]Timer
}

func newRegistry() *registry {
	return &registry{timers: make(map[uuid.UUID]Timer)}
}

// arm replaces any timer held for id with the one returned by start.
// start runs under the registry lock so a callback that fires immediately
// observes the new entry when it removes itself.
func (r *registry) arm(id uuid.UUID, start func() Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.timers[id]; old != nil {
		old.Stop()
	}
	r.timers[id] = start()
}

// disarm stops and forgets the timer for id. It reports whether a timer was held.
func (r *registry) disarm(id uuid.UUID) bool {
	r.mu.Lock()
	t := r.timers[id]
	delete(r.timers, id)
	r.mu.Unlock()
	if t == nil {
		return false
	}
	t.Stop()
	return true
}

// remove forgets the timer for id without stopping it; used by the firing callback itself.
func (r *registry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.timers, id)
	r.mu.Unlock()
}

func (r *registry) has(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[id]
	return ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// stopAll stops every timer and empties the registry.
func (r *registry) stopAll() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[uuid.UUID]Timer)
	r.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}
