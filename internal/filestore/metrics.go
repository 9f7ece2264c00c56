package filestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studytrack",
		Subsystem: "filestore",
		Name:      "lock_timeouts_total",
		Help:      "Lock acquisitions that exhausted the retry budget.",
	})

	staleLocksBrokenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studytrack",
		Subsystem: "filestore",
		Name:      "stale_locks_broken_total",
		Help:      "Locks forcibly broken because their holder looked dead.",
	})

	corruptionRecoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studytrack",
		Subsystem: "filestore",
		Name:      "corruption_recoveries_total",
		Help:      "Reads that needed a recovery heuristic to parse.",
	})

	backupRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studytrack",
		Subsystem: "filestore",
		Name:      "backup_restores_total",
		Help:      "Failed writes rolled back from the .backup sibling.",
	})
)
