package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RebateMetrics groups the collectors of the rebate service.
type RebateMetrics struct {
	Evaluations *prometheus.CounterVec
	Lines       *prometheus.CounterVec
	CacheLookup *prometheus.CounterVec
}

// New registers and returns the rebate collectors. A nil registerer falls
// back to the default one.
func New(namespace string, reg prometheus.Registerer) *RebateMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &RebateMetrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebate_evaluations_total",
			Help:      "Rebate rule evaluations by outcome reason.",
		}, []string{"reason"}),
		Lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebate_lines_total",
			Help:      "Discount lines emitted, split positions counted separately.",
		}, []string{"kind"}),
		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebate_rule_cache_lookups_total",
			Help:      "Rule cache lookups by result.",
		}, []string{"result"}),
	}
	m.Evaluations = register(reg, m.Evaluations)
	m.Lines = register(reg, m.Lines)
	m.CacheLookup = register(reg, m.CacheLookup)
	return m
}

// ObserveEvaluation counts one evaluation; an empty reason means applied.
func (m *RebateMetrics) ObserveEvaluation(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "applied"
	}
	m.Evaluations.WithLabelValues(reason).Inc()
}

// ObserveLine counts one emitted discount line.
func (m *RebateMetrics) ObserveLine(split bool) {
	if m == nil {
		return
	}
	kind := "single"
	if split {
		kind = "split"
	}
	m.Lines.WithLabelValues(kind).Inc()
}

// ObserveCache counts a rule cache hit or miss.
func (m *RebateMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookup.WithLabelValues(result).Inc()
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
