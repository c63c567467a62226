// Package brew drives orders through the brewing stage: a single
// scheduler loop drains the waiting area under per-category capacity
// limits, and a bounded worker pool executes the timed brews,
// landing completed tickets in the tray and notifying their owners.
package brew

import (
	"fmt"
	"sync"
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/pipeline"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"
)

// Config parameterizes a Brewer.
type Config struct {
	// Workers bounds the number of concurrently executing brews.
	Workers int
	// TeaTime and CoffeeTime are the per-category brew durations.
	TeaTime    time.Duration
	CoffeeTime time.Duration
	// RequeueDelay is how long the scheduler pauses after requeuing
	// a ticket whose category is at capacity.
	RequeueDelay time.Duration
}

// DefaultConfig returns production brew timings.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		TeaTime:      30 * time.Second,
		CoffeeTime:   45 * time.Second,
		RequeueDelay: 100 * time.Millisecond,
	}
}

// Validate returns an error if the Config is malformed.
func (cfg Config) Validate() error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("brew workers must be positive (got %d)", cfg.Workers)
	}
	if cfg.TeaTime <= 0 || cfg.CoffeeTime <= 0 {
		return fmt.Errorf("brew durations must be positive")
	}
	if cfg.RequeueDelay <= 0 {
		return fmt.Errorf("requeue delay must be positive")
	}
	return nil
}

func (cfg Config) duration(category cafe.Category) time.Duration {
	if category == cafe.Tea {
		return cfg.TeaTime
	}
	return cfg.CoffeeTime
}

// Brewer owns the scheduler loop and worker pool.
type Brewer struct {
	cfg  Config
	pipe *pipeline.Pipeline

	slots chan struct{} // Bounds in-flight brews.
	wg    sync.WaitGroup
}

// NewBrewer returns a Brewer over `pipe`.
func NewBrewer(cfg Config, pipe *pipeline.Pipeline) *Brewer {
	return &Brewer{
		cfg:   cfg,
		pipe:  pipe,
		slots: make(chan struct{}, cfg.Workers),
	}
}

// QueueTasks queues the scheduler service loop. Worker goroutines
// are drained before the loop returns, so a Group Wait() implies no
// brew is still executing.
func (b *Brewer) QueueTasks(tasks *task.Group) {
	tasks.Queue("brew.scheduler", func() error {
		defer b.wg.Wait()
		return b.schedule(tasks)
	})
}

// schedule is the sole consumer of the waiting area. It reserves a
// capacity slot for the head ticket's category and dispatches a brew
// job, or requeues the ticket at the tail and pauses briefly when
// the category is saturated. Requeuing lets a non-saturated category
// behind the head make progress; order within a category is kept.
func (b *Brewer) schedule(tasks *task.Group) error {
	var ctx = tasks.Context()

	for {
		var ticket, err = b.pipe.Waiting.Dequeue(ctx)
		if err != nil {
			return nil // Cancelled.
		}

		if !b.pipe.Capacity.TryReserve(ticket.Item.Category) {
			b.pipe.Waiting.Enqueue(ticket)
			requeuesTotal.WithLabelValues(string(ticket.Item.Category)).Inc()

			select {
			case <-time.After(b.cfg.RequeueDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// Block until a worker slot frees. Capacity reservations
		// bound in-flight brews at 2 per category, so with the
		// default pool size this never waits.
		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			b.pipe.Capacity.Release(ticket.Item.Category)
			return nil
		}

		// Mark the ticket as brewing before dispatch, so a status
		// probe never observes it in neither stage.
		b.pipe.Brewing.Insert(ticket.Key, "BREWING")

		b.wg.Add(1)
		go b.brewOrder(tasks, ticket)
	}
}

// brewOrder executes one brew job. The capacity slot is released on
// every path out, so a failed or abandoned brew cannot leak it.
func (b *Brewer) brewOrder(tasks *task.Group, ticket *cafe.Ticket) {
	var category = ticket.Item.Category
	defer func() {
		b.pipe.Capacity.Release(category)
		<-b.slots
		b.wg.Done()
	}()

	log.WithFields(log.Fields{"key": ticket.Key, "category": category}).
		Info("started to brew")

	var timer = time.NewTimer(b.cfg.duration(category))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-tasks.Context().Done():
		// Shutdown abandons the in-flight brew; the ticket is lost.
		b.pipe.Brewing.Remove(ticket.Key)
		brewsTotal.WithLabelValues(string(category), "abandoned").Inc()
		return
	}

	// Enqueue to the tray before leaving the brewing stage, so that
	// no observer sees the ticket in neither container.
	b.pipe.Tray.Enqueue(ticket)
	b.pipe.Brewing.Remove(ticket.Key)
	brewsTotal.WithLabelValues(string(category), "ok").Inc()

	log.WithFields(log.Fields{"key": ticket.Key, "category": category}).
		Info("order ready for pickup in tray")

	ticket.Notify(fmt.Sprintf("Your %s is ready for pickup!", ticket.Item))
}
