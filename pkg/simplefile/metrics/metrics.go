// Package metrics exposes Prometheus metrics for file ingestion and the HTTP API.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/simple-file/pkg/simplefile"
)

// Metrics holds the collectors. Each instance registers its own set, so
// tests can use a private registry.
type Metrics struct {
	filesCreated    *prometheus.CounterVec
	filesRejected   *prometheus.CounterVec
	filesFetched    prometheus.Counter
	createdBytes    prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		filesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplefile_files_created_total",
			Help: "Files created, by record kind",
		}, []string{"kind"}),
		filesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplefile_files_rejected_total",
			Help: "Sources that failed ingestion, by reason",
		}, []string{"reason"}),
		filesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "simplefile_files_fetched_total",
			Help: "Successful file lookups",
		}),
		createdBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "simplefile_created_bytes",
			Help:    "Size of created files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplefile_http_requests_total",
			Help: "HTTP requests, by method, route and status",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simplefile_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// EventSink returns a simplefile.EventSink that records lifecycle events
func (m *Metrics) EventSink() simplefile.EventSink {
	return &eventSink{m: m}
}

type eventSink struct {
	m *Metrics
}

func (s *eventSink) FileCreated(ctx context.Context, record simplefile.Record) error {
	s.m.filesCreated.WithLabelValues(string(record.Kind())).Inc()
	s.m.createdBytes.Observe(float64(record.Base().Length()))
	return nil
}

func (s *eventSink) FileRejected(ctx context.Context, source string, err error) error {
	s.m.filesRejected.WithLabelValues(rejectReason(err)).Inc()
	return nil
}

func (s *eventSink) FileFetched(ctx context.Context, record simplefile.Record) error {
	s.m.filesFetched.Inc()
	return nil
}

func rejectReason(err error) string {
	var sizeErr *simplefile.SizeLimitError
	var fetchErr *simplefile.FetchError
	switch {
	case errors.As(err, &sizeErr):
		return "size_limit"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.Is(err, simplefile.ErrInvalidSource):
		return "invalid_source"
	case errors.Is(err, simplefile.ErrInvalidDriver):
		return "driver"
	default:
		return "error"
	}
}

// Middleware records request counts and durations. The path label is the
// matched chi route pattern so uids do not inflate cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
