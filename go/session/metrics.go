package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reclaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cafe_reclaims_total",
	Help: "counter of abandoned tray tickets reassigned to newly arriving orders",
}, []string{"trigger"})

var collectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cafe_collections_total",
	Help: "counter of completed all-or-nothing order collections",
})

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cafe_notifications_total",
	Help: "counter of asynchronous server notifications by delivery status",
}, []string{"status"})
