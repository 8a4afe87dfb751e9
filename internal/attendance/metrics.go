package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubhouse_checkins_total",
		Help: "Recorded check-ins by classified status.",
	}, []string{"status"})

	checkinFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubhouse_checkin_failures_total",
		Help: "Rejected check-in attempts by reason.",
	}, []string{"reason"})
)
