package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Notify(string) {}

func tkt(owner int, qty int, category cafe.Category) *cafe.Ticket {
	return cafe.NewTicket(owner, cafe.Item{Quantity: qty, Category: category}, nopSink{})
}

func TestWaitingIsFIFOAndBlocks(t *testing.T) {
	var w = newWaiting()
	var ctx = context.Background()

	var t1, t2 = tkt(1, 1, cafe.Tea), tkt(1, 1, cafe.Coffee)
	w.Enqueue(t1)
	w.Enqueue(t2)
	require.Equal(t, 2, w.Len())
	require.True(t, w.ContainsItem(1, cafe.Item{Quantity: 1, Category: cafe.Tea}))
	require.False(t, w.ContainsItem(2, cafe.Item{Quantity: 1, Category: cafe.Tea}))

	var got, err = w.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, t1.Key, got.Key)

	got, err = w.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, t2.Key, got.Key)

	// Dequeue of an empty queue blocks until an enqueue arrives.
	var done = make(chan *cafe.Ticket)
	go func() {
		var got, _ = w.Dequeue(ctx)
		done <- got
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned from an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	var t3 = tkt(2, 1, cafe.Tea)
	w.Enqueue(t3)
	require.Equal(t, t3.Key, (<-done).Key)
}

func TestWaitingDequeueObservesCancellation(t *testing.T) {
	var w = newWaiting()
	var ctx, cancel = context.WithCancel(context.Background())

	var errCh = make(chan error)
	go func() {
		var _, err = w.Dequeue(ctx)
		errCh <- err
	}()

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestCapacityCeiling(t *testing.T) {
	var c = newCapacity()

	require.True(t, c.TryReserve(cafe.Tea))
	require.True(t, c.TryReserve(cafe.Tea))
	require.False(t, c.TryReserve(cafe.Tea))
	require.Equal(t, 2, c.Count(cafe.Tea))

	// Categories are independent.
	require.True(t, c.TryReserve(cafe.Coffee))
	require.True(t, c.TryReserve(cafe.Coffee))
	require.False(t, c.TryReserve(cafe.Coffee))

	c.Release(cafe.Tea)
	require.True(t, c.TryReserve(cafe.Tea))
	require.False(t, c.TryReserve(cafe.Tea))
}

func TestCapacityCeilingUnderContention(t *testing.T) {
	var c = newCapacity()

	var wg sync.WaitGroup
	var reserved = make(chan struct{}, 64)
	for i := 0; i != 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryReserve(cafe.Tea) {
				reserved <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(reserved)

	require.Len(t, reserved, CategoryLimit)
}

func TestTrayCollectionIsAllOrNothing(t *testing.T) {
	var tray = newTray()
	var tea = cafe.Item{Quantity: 1, Category: cafe.Tea}
	var coffee = cafe.Item{Quantity: 1, Category: cafe.Coffee}

	tray.Enqueue(tkt(1, 1, cafe.Tea))

	// Coffee isn't in the tray yet: nothing is removed.
	require.False(t, tray.CollectAll(1, []cafe.Item{tea, coffee}))
	require.Equal(t, 1, tray.Len())
	require.True(t, tray.ContainsItem(1, tea))

	tray.Enqueue(tkt(1, 1, cafe.Coffee))
	require.True(t, tray.CollectAll(1, []cafe.Item{tea, coffee}))
	require.Equal(t, 0, tray.Len())
}

func TestTrayCollectionHasMultisetSemantics(t *testing.T) {
	var tray = newTray()
	var tea = cafe.Item{Quantity: 1, Category: cafe.Tea}

	// Two identical outstanding items require two distinct tickets.
	tray.Enqueue(tkt(1, 1, cafe.Tea))
	require.False(t, tray.CollectAll(1, []cafe.Item{tea, tea}))
	require.Equal(t, 1, tray.Len())

	tray.Enqueue(tkt(1, 1, cafe.Tea))
	require.True(t, tray.CollectAll(1, []cafe.Item{tea, tea}))
	require.Equal(t, 0, tray.Len())
}

func TestTrayReclaimMatchesOnlyOrphans(t *testing.T) {
	var tray = newTray()
	var coffee = cafe.Item{Quantity: 1, Category: cafe.Coffee}

	tray.Enqueue(tkt(1, 1, cafe.Coffee))

	// Owner 1 is still active: their ticket is not reclaimable.
	var active = map[int]struct{}{1: {}, 2: {}}
	require.False(t, tray.Reclaim(2, coffee, active, nopSink{}))
	require.True(t, tray.ContainsItem(1, coffee))

	// Owner 1 departs: their ticket is re-keyed to owner 2.
	active = map[int]struct{}{2: {}}
	require.True(t, tray.Reclaim(2, coffee, active, nopSink{}))
	require.False(t, tray.ContainsItem(1, coffee))
	require.True(t, tray.ContainsItem(2, coffee))
	require.Equal(t, 1, tray.Len())

	// No second orphan to reclaim.
	require.False(t, tray.Reclaim(2, coffee, active, nopSink{}))
}

func TestRegistryLifecycle(t *testing.T) {
	var r = newRegistry()

	require.True(t, r.AddActive(7))
	require.False(t, r.AddActive(7)) // Duplicate id is refused.
	require.True(t, r.IsActive(7))

	r.SetIdle(7, "Ada")
	active, idle := r.Counts()
	require.Equal(t, 1, active)
	require.Equal(t, 1, idle)

	r.ClearIdle(7)
	_, idle = r.Counts()
	require.Equal(t, 0, idle)

	r.RemoveActive(7)
	require.False(t, r.IsActive(7))
	require.True(t, r.AddActive(7))
}

func TestConnectedCounter(t *testing.T) {
	var c = &Counter{}
	c.Inc()
	c.Inc()
	c.Dec()
	require.Equal(t, 1, c.Value())
}
