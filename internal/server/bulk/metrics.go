package bulk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_batch_items_total",
			Help: "Bulk items by terminal status",
		},
		[]string{"status"},
	)
	activeBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutout_batches_active",
			Help: "Batches currently held in memory",
		},
	)
)
