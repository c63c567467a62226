// Package stats periodically reports a one-line dashboard of the
// cafe's shared counters. It contributes no pipeline behavior of its
// own: it only reads gauges the core already maintains.
package stats

import (
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/pipeline"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"
)

// departedCacheSize bounds the recently-departed customer cache.
const departedCacheSize = 128

// Dashboard logs pipeline statistics on a fixed interval, and keeps
// a small cache of recently departed customers for reporting.
type Dashboard struct {
	pipe     *pipeline.Pipeline
	interval time.Duration
	departed *lru.Cache[int, string]
}

// NewDashboard returns a Dashboard over `pipe` reporting every
// `interval`.
func NewDashboard(pipe *pipeline.Pipeline, interval time.Duration) *Dashboard {
	var departed, err = lru.New[int, string](departedCacheSize)
	if err != nil {
		panic(err) // Cannot fail: size is a positive constant.
	}
	return &Dashboard{
		pipe:     pipe,
		interval: interval,
		departed: departed,
	}
}

// NoteDeparted records a customer teardown. It's wired as the
// session OnDepart hook.
func (d *Dashboard) NoteDeparted(id int, name string) {
	d.departed.Add(id, name)
}

// Departed returns the names of recently departed customers, oldest
// first.
func (d *Dashboard) Departed() []string {
	var keys = d.departed.Keys()
	var names = make([]string, 0, len(keys))
	for _, id := range keys {
		if name, ok := d.departed.Get(id); ok {
			names = append(names, name)
		}
	}
	return names
}

// QueueTasks queues the reporting loop.
func (d *Dashboard) QueueTasks(tasks *task.Group) {
	tasks.Queue("stats.dashboard", func() error {
		var ticker = time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.report()
			case <-tasks.Context().Done():
				return nil
			}
		}
	})
}

func (d *Dashboard) report() {
	var active, idle = d.pipe.Customers.Counts()

	log.WithFields(log.Fields{
		"clients":       d.pipe.Connected.Value(),
		"waiting":       d.pipe.Waiting.Len(),
		"brewing":       d.pipe.Brewing.Len(),
		"brewingTea":    d.pipe.Capacity.Count(cafe.Tea),
		"brewingCoffee": d.pipe.Capacity.Count(cafe.Coffee),
		"tray":          d.pipe.Tray.Len(),
		"active":        active,
		"idle":          idle,
	}).Info("cafe status")
}
