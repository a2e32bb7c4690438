package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_generation_attempts_total",
			Help: "Upstream generation calls by outcome",
		},
		[]string{"family", "outcome"},
	)

	generationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genstudio_generation_retries_total",
		Help: "Generation retries after a transient upstream failure",
	})

	generationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_generations_total",
			Help: "Finished generations by terminal state",
		},
		[]string{"state"},
	)
)
