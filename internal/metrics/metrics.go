package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts completed sessions by terminal status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clibridge_sessions_total",
			Help: "Total number of CLI sessions by terminal status",
		},
		[]string{"status"},
	)

	// SessionDuration tracks session duration in seconds.
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clibridge_session_duration_seconds",
			Help:    "CLI session duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// SessionsInProgress is 0 or 1; the service is single-flight.
	SessionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clibridge_sessions_in_progress",
			Help: "Number of CLI sessions currently in progress (0 or 1)",
		},
	)

	// BusyRejections counts sessions rejected because one was in flight.
	BusyRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clibridge_busy_rejections_total",
			Help: "Total number of session requests rejected as busy",
		},
	)

	// DecodeSkips counts malformed stream-json lines dropped by the decoder.
	DecodeSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clibridge_decode_skips_total",
			Help: "Total number of malformed protocol lines dropped",
		},
	)

	// ProbeChecks counts availability probes by result.
	ProbeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clibridge_probe_checks_total",
			Help: "Total number of CLI availability probes",
		},
		[]string{"result"},
	)

	// HTTPRequests counts total HTTP requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clibridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clibridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30, 60},
		},
		[]string{"method", "path"},
	)
)
