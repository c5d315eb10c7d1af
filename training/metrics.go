package training

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports training progress to prometheus.
type Metrics struct {
	Loss     prometheus.Gauge
	Steps    prometheus.Counter
	StepTime prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "modax",
			Subsystem: "training",
			Name:      "loss",
			Help:      "Loss at the most recent update step.",
		}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modax",
			Subsystem: "training",
			Name:      "steps_total",
			Help:      "Number of update steps taken.",
		}),
		StepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "modax",
			Subsystem: "training",
			Name:      "step_seconds",
			Help:      "Wall time of one update step.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Loss, m.Steps, m.StepTime} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
