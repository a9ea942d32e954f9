package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqldeck_pool_acquires_total",
			Help: "Pool acquisitions by engine and outcome (hit, miss, rebuild, ephemeral)",
		},
		[]string{"engine", "outcome"},
	)

	poolBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqldeck_pool_builds_total",
			Help: "Physical pool constructions by engine and status",
		},
		[]string{"engine", "status"},
	)

	poolHealthCheckFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqldeck_pool_health_check_failures_total",
			Help: "Cached handles that failed their revalidation round trip",
		},
		[]string{"engine"},
	)

	poolsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqldeck_pools_live",
			Help: "Number of cached pools",
		},
	)
)
