package userqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studytrack_client",
			Subsystem: "userqueue",
			Name:      "submissions_total",
			Help:      "Jobs accepted into a user's queue.",
		},
		[]string{"username"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studytrack_client",
			Subsystem: "userqueue",
			Name:      "failures_total",
			Help:      "Jobs that exhausted retries or failed irrecoverably.",
		},
		[]string{"username"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studytrack_client",
			Subsystem: "userqueue",
			Name:      "queue_full_total",
			Help:      "Submissions rejected because the queue was full.",
		},
		[]string{"username"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "studytrack_client",
			Subsystem: "userqueue",
			Name:      "queue_depth",
			Help:      "Jobs waiting in a user's queue.",
		},
		[]string{"username"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studytrack_client",
			Subsystem: "userqueue",
			Name:      "run_duration_seconds",
			Help:      "Time spent executing a job, per attempt.",
		},
		[]string{"username"},
	)
)
