package driver

import (
	"fmt"
	"time"

	"github.com/gwos/pcjsongen/emit"
	"github.com/gwos/pcjsongen/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics collects counters of one generation run
type Metrics struct {
	registry *prometheus.Registry
	emitted  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.GaugeVec
	run      prometheus.Gauge
}

// NewMetrics returns metrics registered in a registry of their own
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		emitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcjsongen_emitted_total",
				Help: "Definitions and routines emitted by target and kind.",
			},
			[]string{"target", "kind"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcjsongen_unchanged_total",
				Help: "Outputs not written as the existing file is the same.",
			},
			[]string{"target"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pcjsongen_target_duration_seconds",
				Help: "Time spent on the target.",
			},
			[]string{"target"},
		),
		run: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pcjsongen_run_duration_seconds",
			Help: "Time spent on the whole run.",
		}),
	}
	m.registry.MustRegister(m.emitted, m.skipped, m.duration, m.run)
	return m
}

// Registry returns the registry gathering run metrics
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeTarget(target string, stats emit.Stats, d time.Duration, unchanged bool) {
	for _, kind := range stats.Kinds() {
		m.emitted.WithLabelValues(target, kind).Add(float64(stats[kind]))
	}
	if unchanged {
		m.skipped.WithLabelValues(target).Inc()
	}
	m.duration.WithLabelValues(target).Set(d.Seconds())
}

func (m *Metrics) observeRun(d time.Duration) { m.run.Set(d.Seconds()) }

// Totals returns emitted items per target summed over kinds
func (m *Metrics) Totals() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	totals := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "pcjsongen_emitted_total" || family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range family.GetMetric() {
			totals[label(metric, "target")] += metric.GetCounter().GetValue()
		}
	}
	return totals, nil
}

// WriteFile writes the metrics in text exposition format
func (m *Metrics) WriteFile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, m.registry); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	return nil
}

func label(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
