// Package metrics exposes Prometheus instrumentation for the account
// pipeline: deployments, signature production and intent submissions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "polywallet"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the pipeline collectors. Registration is explicit so
// libraries and tests never fight over a global registry.
type Metrics struct {
	// Deployments counts deployment attempts by provider, path
	// (standard, delegation, intent) and outcome.
	Deployments *prometheus.CounterVec

	// DeployDuration observes end-to-end deployment latency in seconds,
	// including receipt polling.
	DeployDuration *prometheus.HistogramVec

	// Signatures counts produced account signatures by provider and
	// signer topology.
	Signatures *prometheus.CounterVec

	// IntentSubmissions counts orchestrator submissions by kind and
	// outcome.
	IntentSubmissions *prometheus.CounterVec
}

// New creates the pipeline collectors and registers them with reg. A nil
// registerer skips registration; the collectors still work, which keeps
// instrumented code free of nil checks.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Account deployment attempts by provider, path and outcome.",
		}, []string{"provider", "path", "outcome"}),

		DeployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deploy_duration_seconds",
			Help:      "End-to-end account deployment latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"provider", "path"}),

		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Account signatures produced by provider and signer topology.",
		}, []string{"provider", "topology"}),

		IntentSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_submissions_total",
			Help:      "Intent orchestrator submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.Deployments, m.DeployDuration, m.Signatures, m.IntentSubmissions)
	}
	return m
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
