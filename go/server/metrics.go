package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var acceptsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cafe_accepts_total",
	Help: "counter of accepted customer connections",
})
