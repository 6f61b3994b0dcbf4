// Package metrics exposes prometheus counters for authentication outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	FlowLogin    = "login"
	FlowKeyLogin = "key_login"
	FlowRegister = "register"
)

type Metrics struct {
	attempts *prometheus.CounterVec
	evicted  prometheus.Counter
	keysGen  prometheus.Counter
}

// New registers the auth metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gouauth_auth_attempts_total",
			Help: "Authentication attempts by flow and outcome code (OK on success).",
		}, []string{"flow", "outcome"}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gouauth_sessions_evicted_total",
			Help: "Sessions evicted to make room under the per-app ceiling.",
		}),
		keysGen: factory.NewCounter(prometheus.CounterOpts{
			Name: "gouauth_keys_generated_total",
			Help: "License keys generated.",
		}),
	}
}

func (m *Metrics) Attempt(flow, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "OK"
	}
	m.attempts.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.evicted.Inc()
}

func (m *Metrics) KeysGenerated(n int) {
	if m == nil {
		return
	}
	m.keysGen.Add(float64(n))
}
