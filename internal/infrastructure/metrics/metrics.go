package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundingarb",
			Subsystem: "source",
			Name:      "fetch_total",
			Help:      "Total number of source fetches by result.",
		},
		[]string{"source", "result"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundingarb",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"source"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundingarb",
			Subsystem: "source",
			Name:      "dropped_total",
			Help:      "Triggers dropped because a fetch was in flight.",
		},
		[]string{"source"},
	)

	observations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fundingarb",
			Subsystem: "source",
			Name:      "observations",
			Help:      "Observations in the last committed snapshot.",
		},
		[]string{"source"},
	)

	streamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundingarb",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Websocket reconnect attempts.",
		},
		[]string{"venue"},
	)

	tableRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fundingarb",
			Name:      "table_rows",
			Help:      "Rows in the published table.",
		},
	)

	joinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fundingarb",
			Name:      "joins_total",
			Help:      "Number of published joins.",
		},
	)
)

func init() {
	Registry.MustRegister(
		fetchTotal,
		fetchDuration,
		droppedTotal,
		observations,
		streamReconnects,
		tableRows,
		joinsTotal,
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// StreamReconnected 记录一次重连
func StreamReconnected(venue string) {
	streamReconnects.WithLabelValues(venue).Inc()
}

// Recorder 把应用层的上报写入 prometheus
type Recorder struct{}

func (Recorder) FetchObserved(source, result string, d time.Duration) {
	fetchTotal.WithLabelValues(source, result).Inc()
	fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (Recorder) FetchDropped(source string) {
	droppedTotal.WithLabelValues(source).Inc()
}

func (Recorder) ObservationsSet(source string, n int) {
	observations.WithLabelValues(source).Set(float64(n))
}

func (Recorder) TablePublished(rows int) {
	tableRows.Set(float64(rows))
	joinsTotal.Inc()
}
