package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "documents_created_total", Help: "Documents created per subteam."},
		[]string{"subteam"},
	)
	SerialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "serial_failures_total", Help: "Documents saved without a serial number because numbering failed."},
		[]string{"subteam"},
	)
	IndexFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "index_fallback_total", Help: "Ordered queries served by the full-scan fallback."},
		[]string{"collection"},
	)
	AttachmentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "kbwiki", Name: "attachment_upload_failures_total", Help: "Attachment uploads that failed and were skipped."},
	)
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "kbwiki", Name: "search_duration_seconds", Help: "Time spent filtering the search snapshot.", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12)},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentsCreated)
	reg.MustRegister(SerialFailures)
	reg.MustRegister(IndexFallbacks)
	reg.MustRegister(AttachmentFailures)
	reg.MustRegister(SearchDuration)
}
