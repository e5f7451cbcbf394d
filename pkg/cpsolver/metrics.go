// metrics.go: a search monitor exporting Prometheus metrics.
package cpsolver

import "github.com/prometheus/client_golang/prometheus"

// MetricsMonitor exports search counters (decision branches, failures,
// solutions) and the current search depth as Prometheus metrics. One
// monitor registers one metric family set; reuse the same monitor across
// searches of the same solver.
type MetricsMonitor struct {
	BaseSearchMonitor
	branches  prometheus.Counter
	failures  prometheus.Counter
	solutions prometheus.Counter
	depth     prometheus.Gauge
}

// NewMetricsMonitor returns a monitor registered on reg. A nil reg uses
// the default Prometheus registerer.
func NewMetricsMonitor(reg prometheus.Registerer, model string) (*MetricsMonitor, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"model": model}
	m := &MetricsMonitor{
		branches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cpsolver_branches_total",
			Help:        "Decision branches explored.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cpsolver_failures_total",
			Help:        "Propagation failures raised.",
			ConstLabels: labels,
		}),
		solutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cpsolver_solutions_total",
			Help:        "Solutions found.",
			ConstLabels: labels,
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "cpsolver_search_depth",
			Help:        "Current depth of the search tree.",
			ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{m.branches, m.failures, m.solutions, m.depth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsMonitor) ApplyDecision(s *Solver, d Decision) {
	m.branches.Inc()
	if s.search != nil {
		m.depth.Set(float64(s.search.Depth()))
	}
}

func (m *MetricsMonitor) RefuteDecision(s *Solver, d Decision) {
	m.branches.Inc()
}

func (m *MetricsMonitor) BeginFail(s *Solver) {
	m.failures.Inc()
}

func (m *MetricsMonitor) AtSolution(s *Solver) bool {
	m.solutions.Inc()
	return true
}

func (m *MetricsMonitor) ExitSearch(s *Solver) {
	m.depth.Set(0)
}
