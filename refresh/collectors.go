package refresh

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "moodboard"
	subsystem = "refresh"
)

// Collectors represents the refresh cycle instrumentation.
type Collectors struct {
	cycles         prometheus.Counter
	dropped        prometheus.Counter
	sourceFailures *prometheus.CounterVec
	duration       prometheus.Histogram
}

// NewCollectors initializes and registers the refresh cycle collectors.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycles_total",
			Help:      "Number of completed refresh cycles.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_total",
			Help:      "Number of refresh requests dropped while a cycle was in flight.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "source_failures_total",
			Help:      "Number of failed source scrape triggers.",
		}, []string{"source"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{c.cycles, c.dropped, c.sourceFailures, c.duration}
	for idx := range collectors {
		err := reg.Register(collectors[idx])
		if err != nil {
			return nil, fmt.Errorf("registering refresh collector: %w", err)
		}
	}

	return c, nil
}
