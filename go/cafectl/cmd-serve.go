package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baristanet/cafe/go/brew"
	"github.com/baristanet/cafe/go/pipeline"
	"github.com/baristanet/cafe/go/server"
	"github.com/baristanet/cafe/go/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	"go.gazette.dev/core/task"
)

type cmdServe struct {
	Cafe struct {
		Port          int           `long:"port" env:"PORT" default:"8888" description:"Port on which to accept customer connections"`
		MaxSessions   int           `long:"max-sessions" env:"MAX_SESSIONS" default:"10" description:"Maximum concurrently served customer sessions"`
		Workers       int           `long:"workers" env:"WORKERS" default:"4" description:"Size of the brew worker pool"`
		TeaTime       time.Duration `long:"tea-time" env:"TEA_TIME" default:"30s" description:"Brew duration of one tea order"`
		CoffeeTime    time.Duration `long:"coffee-time" env:"COFFEE_TIME" default:"45s" description:"Brew duration of one coffee order"`
		RequeueDelay  time.Duration `long:"requeue-delay" env:"REQUEUE_DELAY" default:"100ms" description:"Scheduler pause after requeuing a saturated category"`
		StatsInterval time.Duration `long:"stats-interval" env:"STATS_INTERVAL" default:"1s" description:"Interval of the status dashboard log line"`
		MetricsPort   int           `long:"metrics-port" env:"METRICS_PORT" default:"0" description:"If non-zero, serve Prometheus metrics on this port"`
	} `group:"Cafe" namespace:"cafe" env-namespace:"CAFE"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

func (cmd *cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(cmd.Diagnostics)()
	mbp.InitLog(cmd.Log)

	log.WithFields(log.Fields{
		"port":     cmd.Cafe.Port,
		"sessions": cmd.Cafe.MaxSessions,
		"workers":  cmd.Cafe.Workers,
	}).Info("opening the cafe")

	var pipe = pipeline.New()

	var brewCfg = brew.Config{
		Workers:      cmd.Cafe.Workers,
		TeaTime:      cmd.Cafe.TeaTime,
		CoffeeTime:   cmd.Cafe.CoffeeTime,
		RequeueDelay: cmd.Cafe.RequeueDelay,
	}
	if err := brewCfg.Validate(); err != nil {
		return fmt.Errorf("brew config: %w", err)
	}
	var brewer = brew.NewBrewer(brewCfg, pipe)

	srv, err := server.New(server.Config{
		Port:        cmd.Cafe.Port,
		MaxSessions: cmd.Cafe.MaxSessions,
	}, pipe)
	if err != nil {
		return err
	}

	var dashboard = stats.NewDashboard(pipe, cmd.Cafe.StatsInterval)
	srv.OnDepart = dashboard.NoteDeparted

	var tasks = task.NewGroup(context.Background())
	srv.QueueTasks(tasks)
	brewer.QueueTasks(tasks)
	dashboard.QueueTasks(tasks)

	if port := cmd.Cafe.MetricsPort; port != 0 {
		var mux = http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
				log.WithField("err", err).Error("metrics server failed")
			}
		}()
	}

	// A controlled shutdown cancels the task group; in-flight brews
	// are abandoned and un-collected orders are discarded.
	go func() {
		var sig = make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
		log.WithField("signal", <-sig).Info("caught signal; the cafe is closing")
		tasks.Cancel()
	}()

	tasks.GoRun()
	return tasks.Wait()
}
