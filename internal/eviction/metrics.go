package eviction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evictedImages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "genstudio_evicted_images_total",
	Help: "Total number of cached images removed by eviction",
})
