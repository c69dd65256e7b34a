package taskwatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan results recorded in the scans counter.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the scheduler collectors.
type Metrics struct {
	events       prometheus.Counter
	scans        *prometheus.CounterVec
	dropped      prometheus.Counter
	scanDuration prometheus.Histogram
}

// NewMetrics registers the scheduler collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spectasks",
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Checklist file events that re-armed the debounce timer.",
		}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectasks",
			Name:      "scans_total",
			Help:      "Scans started by the watcher, by result.",
		}, []string{"result"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spectasks",
			Name:      "scans_dropped_total",
			Help:      "Triggers dropped because a scan was already running.",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spectasks",
			Name:      "scan_duration_seconds",
			Help:      "Duration of watcher scans.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}
