// Package metrics holds the Prometheus collectors for extractions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_extractions_total",
			Help: "Total number of finished extractions.",
		},
		[]string{"status"}, // success, empty, failed, discarded
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contact_extraction_duration_seconds",
			Help:    "Duration of extractions from upload to result.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	ContactsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contacts_extracted_total",
			Help: "Total number of contacts returned by successful extractions.",
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_exports_total",
			Help: "Total number of exports served.",
		},
		[]string{"format"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ObserveExtraction records one finished extraction
func ObserveExtraction(status string, contacts int, elapsed time.Duration) {
	ExtractionsTotal.WithLabelValues(status).Inc()
	ExtractionDuration.Observe(elapsed.Seconds())
	if contacts > 0 {
		ContactsExtracted.Add(float64(contacts))
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests and their latency
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
