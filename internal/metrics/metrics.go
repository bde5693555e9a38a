package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_fetch_request_latency",
		Help:    "Histogram of outbound page fetch latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host", "status_code"})

	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_ingest_total",
		Help: "HTML ingestion attempts by result.",
	}, []string{"result"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_realtime_connections",
		Help: "Open realtime websocket connections.",
	})

	tableCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hearth_table_estimated_count",
		Help: "Estimated record count for a table.",
	}, []string{"table"})
)
