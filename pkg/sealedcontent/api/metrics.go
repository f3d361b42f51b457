package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sealed_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealed_uploads_total",
			Help: "Objects stored, by content type",
		},
		[]string{"content_type"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealed_upload_bytes_total",
			Help: "Plaintext bytes accepted for storage",
		},
	)

	viewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealed_views_total",
			Help: "Objects successfully decrypted and verified",
		},
	)

	deletesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealed_deletes_total",
			Help: "Objects deleted",
		},
	)

	registrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealed_registrations_total",
			Help: "Accounts registered",
		},
	)

	fetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealed_fetch_failures_total",
			Help: "Refused retrievals, by reason",
		},
		[]string{"reason"},
	)
)

// MetricsMiddleware records request count and latency per route pattern.
// Install it on the root router so the pattern includes mount prefixes.
func MetricsMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// fetchFailureReason labels a refused retrieval. Clients see one message
// for most of these; the metric keeps them apart.
func fetchFailureReason(err error) string {
	switch {
	case errors.Is(err, sealedcontent.ErrMissingKey):
		return "missing_key"
	case errors.Is(err, sealedcontent.ErrNotFound):
		return "not_found"
	case errors.Is(err, sealedcontent.ErrOrphaned):
		return "orphaned"
	case errors.Is(err, sealedcontent.ErrInvalidCapability):
		return "invalid_capability"
	case errors.Is(err, sealedcontent.ErrInvalidKeyOrTampered):
		return "invalid_key"
	case errors.Is(err, sealedcontent.ErrTamperedOrCorrupted):
		return "digest_mismatch"
	default:
		return "error"
	}
}

// MetricsEventSink counts service events in Prometheus.
type MetricsEventSink struct{}

// NewMetricsEventSink returns an EventSink backed by the package counters.
func NewMetricsEventSink() sealedcontent.EventSink {
	return MetricsEventSink{}
}

func (MetricsEventSink) AccountRegistered(ctx context.Context, account *sealedcontent.Account) error {
	registrationsTotal.Inc()
	return nil
}

func (MetricsEventSink) ObjectUploaded(ctx context.Context, object *sealedcontent.Object, owner *sealedcontent.Account) error {
	uploadsTotal.WithLabelValues(object.ContentType).Inc()
	uploadBytesTotal.Add(float64(object.SizeBytes))
	return nil
}

func (MetricsEventSink) ObjectViewed(ctx context.Context, object *sealedcontent.Object) error {
	viewsTotal.Inc()
	return nil
}

func (MetricsEventSink) ObjectDeleted(ctx context.Context, object *sealedcontent.Object) error {
	deletesTotal.Inc()
	return nil
}
