package brew

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var brewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cafe_brews_total",
	Help: "counter of brew jobs by category and outcome",
}, []string{"category", "status"})

var requeuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cafe_scheduler_requeues_total",
	Help: "counter of tickets requeued because their category was at capacity",
}, []string{"category"})
