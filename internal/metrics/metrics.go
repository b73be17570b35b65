package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psicoflow",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	ledgersComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "psicoflow",
			Name:      "ledgers_computed_total",
			Help:      "Count of monthly ledger reconciliations.",
		},
	)

	projectionsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "psicoflow",
			Name:      "projections_emitted_total",
			Help:      "Count of virtual transactions synthesized from recurring slots.",
		},
	)

	autoCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "psicoflow",
			Name:      "appointments_auto_completed_total",
			Help:      "Count of past appointments promoted from scheduled to completed.",
		},
	)

	ledgerCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psicoflow",
			Name:      "ledger_cache_total",
			Help:      "Ledger cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, ledgersComputed, projectionsEmitted, autoCompleted, ledgerCache)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncLedgerComputed() {
	ledgersComputed.Inc()
}

func AddProjections(n int) {
	projectionsEmitted.Add(float64(n))
}

func AddAutoCompleted(n int) {
	autoCompleted.Add(float64(n))
}

func IncLedgerCache(outcome string) {
	ledgerCache.WithLabelValues(outcome).Inc()
}
