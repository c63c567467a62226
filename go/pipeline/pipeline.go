// Package pipeline holds the shared, process-wide state of the cafe:
// the three order stages (waiting, brewing, tray), per-category
// capacity counters, and the customer registries. Every container is
// safe for concurrent use, and no operation holds more than one lock.
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/baristanet/cafe/go/cafe"
)

// CategoryLimit bounds how many items of a single category may brew
// concurrently.
const CategoryLimit = 2

// Pipeline bundles the shared stages and registries which sessions,
// the scheduler, and brew workers all operate against.
type Pipeline struct {
	Waiting   *Waiting
	Brewing   *Brewing
	Tray      *Tray
	Capacity  *Capacity
	Customers *Registry
	Connected *Counter
}

// New returns an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{
		Waiting:   newWaiting(),
		Brewing:   newBrewing(),
		Tray:      newTray(),
		Capacity:  newCapacity(),
		Customers: newRegistry(),
		Connected: &Counter{},
	}
}

// Capacity tracks, per category, how many items are currently
// brewing. The scheduler reserves a slot before dispatching a brew
// job, and the worker releases it on completion (or failure), so the
// per-category ceiling is never exceeded.
type Capacity struct {
	tea    atomic.Int32
	coffee atomic.Int32
}

func newCapacity() *Capacity { return &Capacity{} }

func (c *Capacity) counter(category cafe.Category) *atomic.Int32 {
	if category == cafe.Tea {
		return &c.tea
	}
	return &c.coffee
}

// TryReserve attempts to claim a brewing slot for `category`,
// returning whether one was free.
func (c *Capacity) TryReserve(category cafe.Category) bool {
	var counter = c.counter(category)
	for {
		var n = counter.Load()
		if n >= CategoryLimit {
			return false
		}
		if counter.CompareAndSwap(n, n+1) {
			brewingGauge.WithLabelValues(string(category)).Inc()
			return true
		}
	}
}

// Release returns a brewing slot of `category`.
func (c *Capacity) Release(category cafe.Category) {
	c.counter(category).Add(-1)
	brewingGauge.WithLabelValues(string(category)).Dec()
}

// Count returns the number of reserved slots of `category`.
func (c *Capacity) Count(category cafe.Category) int {
	return int(c.counter(category).Load())
}

// Registry tracks which customer ids are connected (active), and
// which connected customers currently owe nothing (idle, mapped to
// their display name). The idle map is a projection kept for the
// stats dashboard; the session itself is the source of truth for
// its own idleness.
type Registry struct {
	mu     sync.Mutex
	active map[int]struct{}
	idle   map[int]string
}

func newRegistry() *Registry {
	return &Registry{
		active: make(map[int]struct{}),
		idle:   make(map[int]string),
	}
}

// AddActive registers `id`, returning false if it's already active.
func (r *Registry) AddActive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

// RemoveActive clears `id` from both the active and idle registries.
func (r *Registry) RemoveActive(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
	delete(r.idle, id)
}

// IsActive reports whether `id` is connected.
func (r *Registry) IsActive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var _, ok = r.active[id]
	return ok
}

// ActiveIDs snapshots the set of connected customer ids.
func (r *Registry) ActiveIDs() map[int]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out = make(map[int]struct{}, len(r.active))
	for id := range r.active {
		out[id] = struct{}{}
	}
	return out
}

// SetIdle records that `id` has collected everything they ordered.
func (r *Registry) SetIdle(id int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idle[id] = name
}

// ClearIdle records that `id` has outstanding items again.
func (r *Registry) ClearIdle(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.idle, id)
}

// Counts returns the active and idle registry sizes.
func (r *Registry) Counts() (active, idle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), len(r.idle)
}

// Counter counts currently-connected clients. It's incremented by
// the acceptor and decremented by session teardown.
type Counter struct {
	n atomic.Int64
}

// Inc increments the counter.
func (c *Counter) Inc() {
	c.n.Add(1)
	connectedGauge.Inc()
}

// Dec decrements the counter.
func (c *Counter) Dec() {
	c.n.Add(-1)
	connectedGauge.Dec()
}

// Value returns the current count.
func (c *Counter) Value() int {
	return int(c.n.Load())
}
