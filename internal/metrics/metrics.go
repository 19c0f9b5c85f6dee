// Package metrics exposes Prometheus counters for parsing, the HTTP API and
// the reservation feed.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gds_parser/internal/diag"
	"gds_parser/internal/rows"
)

// Parse outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeFatal = "fatal"
	OutcomeError = "error"
)

var (
	// Parsing
	parsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_parses_total",
			Help: "Total number of reservation texts parsed, by dialect and outcome.",
		},
		[]string{"dialect", "outcome"},
	)
	parseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gds_parse_duration_seconds",
			Help:    "Time spent extracting one reservation text (seconds).",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"dialect"},
	)
	rowsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_rows_scanned_total",
			Help: "Candidate rows examined, by scan.",
		},
		[]string{"scan"},
	)
	rowsMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_rows_matched_total",
			Help: "Candidate rows that produced a record, by scan.",
		},
		[]string{"scan"},
	)
	rowsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_rows_dropped_total",
			Help: "Candidate rows silently dropped, by scan.",
		},
		[]string{"scan"},
	)
	warningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_warnings_total",
			Help: "Warnings raised, by category.",
		},
		[]string{"category"},
	)

	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gds_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Feed
	feedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gds_feed_messages_total",
			Help: "Total number of feed messages received.",
		},
	)
	feedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_feed_errors_total",
			Help: "Feed errors, by operation.",
		},
		[]string{"operation"},
	)

	// Storage
	storageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gds_storage_errors_total",
			Help: "Failed writes, by backend.",
		},
		[]string{"backend"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			parsesTotal,
			parseDuration,
			rowsScanned,
			rowsMatched,
			rowsDropped,
			warningsTotal,

			httpRequests,
			httpDuration,

			feedMessages,
			feedErrors,

			storageErrors,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Parsing ---

// ObserveParse records one extraction.
func ObserveParse(dialect, outcome string, d time.Duration) {
	parsesTotal.WithLabelValues(dialect, outcome).Inc()
	parseDuration.WithLabelValues(dialect).Observe(d.Seconds())
}

// ObserveStats records the row counts of every scan.
func ObserveStats(stats map[string]rows.Stats) {
	for scan, s := range stats {
		rowsScanned.WithLabelValues(scan).Add(float64(s.Scanned))
		rowsMatched.WithLabelValues(scan).Add(float64(s.Matched))
		if d := s.Dropped(); d > 0 {
			rowsDropped.WithLabelValues(scan).Add(float64(d))
		}
	}
}

// ObserveWarnings counts warnings by category.
func ObserveWarnings(ws []diag.Warning) {
	for _, w := range ws {
		warningsTotal.WithLabelValues(string(w.Category)).Inc()
	}
}

// --- HTTP ---

func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	c := strconv.Itoa(code)
	httpRequests.WithLabelValues(method, route, c).Inc()
	httpDuration.WithLabelValues(method, route, c).Observe(d.Seconds())
}

// --- Feed ---

func IncFeedMessage()               { feedMessages.Inc() }
func IncFeedError(operation string) { feedErrors.WithLabelValues(operation).Inc() }

// --- Storage ---

func IncStorageError(backend string) { storageErrors.WithLabelValues(backend).Inc() }
