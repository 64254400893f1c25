// Package metrics exports resource table lifecycle events to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/owned/resource"
)

// Collector counts resource lifecycle events. Subscribe it to one or more
// tables with Table.Subscribe.
type Collector struct {
	events     *prometheus.CounterVec
	dropErrors prometheus.Counter
	live       prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "owned",
			Subsystem: "resource",
			Name:      "events_total",
			Help:      "Resource table lifecycle events by type.",
		}, []string{"event"}),
		dropErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "owned",
			Subsystem: "resource",
			Name:      "drop_errors_total",
			Help:      "Drops whose destroyer returned an error or panicked.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "owned",
			Subsystem: "resource",
			Name:      "live",
			Help:      "Values currently parked in observed resource tables.",
		}),
	}

	for _, m := range []prometheus.Collector{c.events, c.dropErrors, c.live} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnResourceEvent implements resource.Observer.
func (c *Collector) OnResourceEvent(e resource.Event) {
	c.events.WithLabelValues(e.Type.String()).Inc()

	switch e.Type {
	case resource.EventCreated:
		c.live.Inc()
	case resource.EventTaken:
		c.live.Dec()
	case resource.EventDropped:
		c.live.Dec()
		if e.Err != nil {
			c.dropErrors.Inc()
		}
	}
}
