// Package metrics records generation statistics as Prometheus metrics in a
// private registry and exports them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lbsim/flowgen/sim/workload"
)

// GenerationMetrics holds the collectors for one generation run.
type GenerationMetrics struct {
	registry *prometheus.Registry
	flows    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	sections prometheus.Counter
	sizes    prometheus.Histogram
	duration prometheus.Gauge
}

// NewGenerationMetrics registers all collectors on a fresh registry, so
// repeated runs in one process never collide on the default registerer.
func NewGenerationMetrics() *GenerationMetrics {
	m := &GenerationMetrics{
		registry: prometheus.NewRegistry(),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_flows_generated_total",
			Help: "Flows emitted, by traffic model.",
		}, []string{"model"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_bytes_generated_total",
			Help: "Bytes offered by emitted flows, by traffic model.",
		}, []string{"model"}),
		sections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowgen_sections_total",
			Help: "Pod-to-pod sections opened by the bursty model.",
		}),
		sizes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowgen_section_flows",
			Help:    "Flows per bursty section.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 8),
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowgen_generation_duration_seconds",
			Help: "Wall-clock time spent generating the trace.",
		}),
	}
	m.registry.MustRegister(m.flows, m.bytes, m.sections, m.sizes, m.duration)
	return m
}

// Observe records a composed result and the time it took to produce.
func (m *GenerationMetrics) Observe(res *workload.Result, elapsed time.Duration) {
	models := make([]string, 0, len(res.FlowsByModel))
	for name := range res.FlowsByModel {
		models = append(models, name)
	}
	sort.Strings(models)
	for _, name := range models {
		m.flows.WithLabelValues(name).Add(float64(res.FlowsByModel[name]))
		m.bytes.WithLabelValues(name).Add(float64(res.BytesByModel[name]))
	}
	for _, n := range res.SectionSizes {
		m.sections.Inc()
		m.sizes.Observe(float64(n))
	}
	m.duration.Set(elapsed.Seconds())
}

// WriteTextfile dumps all metrics in text exposition format to path.
func (m *GenerationMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
