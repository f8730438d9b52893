package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LocationRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "location_requests_total",
		Help:      "Total number of accepted location requests",
	})

	LocationReports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "location_reports_total",
		Help:      "Total number of accepted location reports",
	})

	FacesEnrolled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "faces_enrolled_total",
		Help:      "Total number of face samples enrolled into templates",
	})

	FacesRecognized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "faces_recognized_total",
		Help:      "Total number of classified probe faces",
	}, []string{"result"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beacon",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beacon",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beacon",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
