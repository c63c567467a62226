package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cafe_connected_clients",
	Help: "gauge of currently connected customer sessions",
})

var waitingDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cafe_waiting_depth",
	Help: "gauge of tickets in the waiting area",
})

var trayDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cafe_tray_depth",
	Help: "gauge of completed tickets awaiting pickup in the tray",
})

var brewingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cafe_brewing_slots",
	Help: "gauge of reserved brewing slots by category",
}, []string{"category"})
