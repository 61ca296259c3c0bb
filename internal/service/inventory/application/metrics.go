// internal/service/inventory/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_operations_total",
		Help: "Ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	conflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_conflict_retries_total",
		Help: "Optimistic concurrency conflicts retried inside the ledger.",
	})

	sweeperReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sweeper_reclaimed_total",
		Help: "Expired reservations reclaimed by the sweeper.",
	})

	sweeperCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sweeper_cycles_total",
		Help: "Sweeper cycles executed.",
	})
)
