// Package metrics declares the Prometheus collectors exported on /metrics.
// Collectors register with the default registry at init time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inkwell"

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobsSubmitted counts accepted submissions by job kind.
var JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "submitted_total",
	Help:      "Total generation jobs accepted.",
}, []string{"kind"})

// JobsFinished counts jobs reaching a terminal status.
var JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "finished_total",
	Help:      "Total generation jobs finished by terminal status.",
}, []string{"status"})

// TitlesProcessed counts individual titles by result (generated, failed, skipped).
var TitlesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "titles_total",
	Help:      "Total titles processed by result.",
}, []string{"result"})

// QueueDepth tracks the number of job ids waiting in the queue.
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "queue",
	Name:      "depth",
	Help:      "Current number of jobs waiting to be processed.",
})

// ─── Credits ────────────────────────────────────────────────────────────────

// CreditsReserved counts credits held at submission.
var CreditsReserved = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "reserved_total",
	Help:      "Total credits reserved against submitted jobs.",
})

// CreditsSettled counts credits charged at settlement.
var CreditsSettled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "settled_total",
	Help:      "Total credits charged when jobs settle.",
})

// CreditsReleased counts reserved credits returned to users.
var CreditsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "released_total",
	Help:      "Total reserved credits returned by reason (adjustment, refund).",
}, []string{"reason"})

// ReservationsRejected counts submissions refused for insufficient funds.
var ReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "reservations_rejected_total",
	Help:      "Total reservations rejected for insufficient funds.",
})

// ─── Providers ──────────────────────────────────────────────────────────────

// ProviderLatency observes the duration of provider calls.
var ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "provider",
	Name:      "call_duration_seconds",
	Help:      "Latency of content provider calls.",
	Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
}, []string{"provider", "operation"})

// ProviderErrors counts failed provider calls.
var ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "provider",
	Name:      "errors_total",
	Help:      "Total failed content provider calls.",
}, []string{"provider", "operation"})
