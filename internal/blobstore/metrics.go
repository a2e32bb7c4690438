package blobstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagePuts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_image_cache_puts_total",
			Help: "Image cache writes by result",
		},
		[]string{"result"},
	)

	cacheImages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "genstudio_image_cache_images",
		Help: "Number of cached images at the last stats refresh",
	})

	cacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "genstudio_image_cache_bytes",
		Help: "Total cached image bytes at the last stats refresh",
	})
)
