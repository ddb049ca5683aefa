package rembg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK        = "ok"
	outcomeTransport = "transport"
	outcomeStatus    = "status"
	outcomeSchema    = "schema"
)

var upstreamCalls = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cutout_upstream_calls_total",
		Help: "Background-removal API calls by outcome",
	},
	[]string{"outcome"},
)

func observe(outcome string) {
	upstreamCalls.WithLabelValues(outcome).Inc()
}
