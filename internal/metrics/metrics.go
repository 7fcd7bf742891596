// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	vacanciesFetchedTotal  *prometheus.CounterVec
	vacanciesAcceptedTotal *prometheus.CounterVec
	vacanciesRejectedTotal *prometheus.CounterVec
	vacanciesDeletedTotal  *prometheus.CounterVec
	fetchErrorsTotal       *prometheus.CounterVec
	rescansTotal           *prometheus.CounterVec
	drainDurationSeconds   *prometheus.HistogramVec
	storeErrorsTotal       *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		vacanciesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_vacancies_fetched_total",
				Help: "Total vacancy detail fetches attempted, labeled by source and queue.",
			},
			[]string{"source", "queue"},
		)

		vacanciesAcceptedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_vacancies_accepted_total",
				Help: "Total vacancies that passed the relevance gate, labeled by source.",
			},
			[]string{"source"},
		)

		vacanciesRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_vacancies_rejected_total",
				Help: "Total vacancies rejected by the relevance gate, labeled by source.",
			},
			[]string{"source"},
		)

		vacanciesDeletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_vacancies_deleted_total",
				Help: "Total previously accepted vacancies deleted on refresh, labeled by source.",
			},
			[]string{"source"},
		)

		fetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_errors_total",
				Help: "Total per-item fetch failures, labeled by source.",
			},
			[]string{"source"},
		)

		rescansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rescans_total",
				Help: "Total full candidate-list rescans, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		drainDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_drain_duration_seconds",
				Help:    "Duration of drain batches, labeled by source and queue.",
				Buckets: []float64{0.5, 1, 5, 15, 60, 120, 300},
			},
			[]string{"source", "queue"},
		)

		storeErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_store_errors_total",
				Help: "Total catalog store call failures, labeled by operation.",
			},
			[]string{"op"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one attempted detail fetch for a queue ("unscanned" or "stale").
func ObserveFetch(source, queue string) {
	vacanciesFetchedTotal.WithLabelValues(source, queue).Inc()
}

// ObserveAccepted counts vacancies that passed the relevance gate.
func ObserveAccepted(source string, n int) {
	if n > 0 {
		vacanciesAcceptedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveRejected counts vacancies rejected by the relevance gate.
func ObserveRejected(source string, n int) {
	if n > 0 {
		vacanciesRejectedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveDeleted counts previously accepted vacancies deleted on refresh.
func ObserveDeleted(source string, n int) {
	if n > 0 {
		vacanciesDeletedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveFetchError counts one per-item fetch failure.
func ObserveFetchError(source string) {
	fetchErrorsTotal.WithLabelValues(source).Inc()
}

// ObserveRescan counts one full rescan with outcome "ok" or "error".
func ObserveRescan(source, outcome string) {
	rescansTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveDrain records the duration of one drain batch.
func ObserveDrain(source, queue string, d time.Duration) {
	drainDurationSeconds.WithLabelValues(source, queue).Observe(d.Seconds())
}

// ObserveStoreError counts one failed catalog store call.
func ObserveStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}
