package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/baristanet/cafe/go/cafe"
)

// Waiting is the first pipeline stage: an unbounded FIFO of tickets
// which have been ordered but not yet picked up by the scheduler.
// The scheduler is its sole consumer; sessions are its producers.
type Waiting struct {
	mu     sync.Mutex
	queue  []*cafe.Ticket
	signal chan struct{}
}

func newWaiting() *Waiting {
	return &Waiting{signal: make(chan struct{}, 1)}
}

// Enqueue appends a ticket at the tail of the queue.
func (w *Waiting) Enqueue(t *cafe.Ticket) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	waitingDepth.Inc()

	select {
	case w.signal <- struct{}{}:
	default: // A wakeup is already pending.
	}
}

// Dequeue blocks until a ticket is available at the head of the
// queue, or until `ctx` is cancelled. The single-consumer contract
// means a wakeup signal is never lost to another reader.
func (w *Waiting) Dequeue(ctx context.Context) (*cafe.Ticket, error) {
	for {
		w.mu.Lock()
		if len(w.queue) != 0 {
			var t = w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			waitingDepth.Dec()
			return t, nil
		}
		w.mu.Unlock()

		select {
		case <-w.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ContainsItem reports whether any queued ticket is `owner`'s
// instance of `item`.
func (w *Waiting) ContainsItem(owner int, item cafe.Item) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range w.queue {
		if t.Owner == owner && t.Item == item {
			return true
		}
	}
	return false
}

// Len returns the queue depth.
func (w *Waiting) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Brewing is the second pipeline stage: the set of ticket keys
// currently being brewed, mapped to a status marker. Workers are its
// sole mutators.
type Brewing struct {
	mu   sync.Mutex
	keys map[string]string
}

func newBrewing() *Brewing {
	return &Brewing{keys: make(map[string]string)}
}

// Insert marks `key` as brewing.
func (b *Brewing) Insert(key, marker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[key] = marker
}

// Remove clears `key`.
func (b *Brewing) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keys, key)
}

// ContainsKey reports whether `key` is currently brewing.
func (b *Brewing) ContainsKey(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var _, ok = b.keys[key]
	return ok
}

// ContainsItem reports whether any instance of `owner`'s `item` is
// currently brewing. Ticket keys embed their owner and item text as
// a prefix, which this matches against.
func (b *Brewing) ContainsItem(owner int, item cafe.Item) bool {
	var prefix = cafe.KeyPrefix(owner, item)

	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.keys {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of brewing keys.
func (b *Brewing) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys)
}

// Tray is the final pipeline stage: completed tickets awaiting
// pickup. Tickets leave the tray through all-or-nothing collection
// by their owner, or through reclamation of orphaned tickets.
type Tray struct {
	mu    sync.Mutex
	queue []*cafe.Ticket
}

func newTray() *Tray {
	return &Tray{}
}

// Enqueue appends a completed ticket.
func (t *Tray) Enqueue(ticket *cafe.Ticket) {
	t.mu.Lock()
	t.queue = append(t.queue, ticket)
	t.mu.Unlock()

	trayDepth.Inc()
}

// ContainsItem reports whether a tray ticket is `owner`'s instance
// of `item`.
func (t *Tray) ContainsItem(owner int, item cafe.Item) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ticket := range t.queue {
		if ticket.Owner == owner && ticket.Item == item {
			return true
		}
	}
	return false
}

// CollectAll atomically removes one tray ticket of `owner` for each
// of `items`, matching multiset semantics: two identical outstanding
// items require two distinct tray tickets. If any item lacks a
// match, the tray is left unchanged and false is returned.
func (t *Tray) CollectAll(owner int, items []cafe.Item) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var taken = make(map[int]bool, len(items))
	for _, item := range items {
		var matched = false
		for i, ticket := range t.queue {
			if !taken[i] && ticket.Owner == owner && ticket.Item == item {
				taken[i] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	var kept = t.queue[:0]
	for i, ticket := range t.queue {
		if !taken[i] {
			kept = append(kept, ticket)
		}
	}
	t.queue = kept

	trayDepth.Sub(float64(len(taken)))
	return true
}

// Reclaim searches the tray for an orphaned ticket matching `item` —
// one whose owner is absent from `active` — and re-keys it to
// `owner`, delivering through `sink`. It returns whether a ticket
// was reclaimed. `active` is a snapshot taken before entering the
// tray, so no two locks are held together.
func (t *Tray) Reclaim(owner int, item cafe.Item, active map[int]struct{}, sink cafe.NotifySink) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, ticket := range t.queue {
		if _, isActive := active[ticket.Owner]; isActive || ticket.Item != item {
			continue
		}
		t.queue[i] = cafe.NewTicket(owner, item, sink)
		return true
	}
	return false
}

// Len returns the tray depth.
func (t *Tray) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}
