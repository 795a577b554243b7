package breach

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented counts breaches by kind and operation before delegating.
type Instrumented struct {
	next    Reporter
	counter *prometheus.CounterVec
}

// NewInstrumented wraps next with a seqguard_breaches_total counter registered
// on reg. A nil next delegates to the process-wide reporter at report time.
//
// Registering twice on the same registry reuses the existing collector.
func NewInstrumented(next Reporter, reg prometheus.Registerer) (*Instrumented, error) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqguard",
			Name:      "breaches_total",
			Help:      "Iterator contract breaches detected, by kind and operation.",
		},
		[]string{"kind", "op"},
	)
	if reg != nil {
		if err := reg.Register(counter); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			counter = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &Instrumented{next: next, counter: counter}, nil
}

// Report increments the counter for b and forwards it.
func (m *Instrumented) Report(b *Breach) {
	m.counter.WithLabelValues(string(b.Kind), b.Op).Inc()
	ReportTo(m.next, b)
}

// Counter exposes the underlying collector.
func (m *Instrumented) Counter() *prometheus.CounterVec {
	return m.counter
}
