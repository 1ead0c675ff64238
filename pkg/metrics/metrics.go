// Package metrics exposes Prometheus counters for decisions and data fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
)

var (
	decisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonsched_decisions_total",
			Help: "Total number of scheduling decisions by chosen strategy and target region.",
		},
		[]string{"strategy", "region"},
	)
	savingsHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carbonsched_savings_percent",
			Help:    "Estimated carbon savings of the chosen option, in percent.",
			Buckets: []float64{0, 5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"strategy"},
	)
	fetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonsched_fetch_failures_total",
			Help: "Data source requests that failed.",
		},
		[]string{"source"},
	)
	decisionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carbonsched_decision_seconds",
			Help:    "Wall time of one Decide call.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(decisionCounter)
	prometheus.MustRegister(savingsHistogram)
	prometheus.MustRegister(fetchFailures)
	prometheus.MustRegister(decisionSeconds)
}

// ObserveDecision records a finished decision and how long it took.
func ObserveDecision(d core.SchedulingDecision, took time.Duration) {
	decisionCounter.WithLabelValues(string(d.Strategy), d.TargetRegion).Inc()
	savingsHistogram.WithLabelValues(string(d.Strategy)).Observe(d.SavingsPercent)
	decisionSeconds.Observe(took.Seconds())
}

// FetchFailed counts one failed request against source.
func FetchFailed(source string, _ error) {
	fetchFailures.WithLabelValues(source).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
