package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Deployments.WithLabelValues("safe", "standard", OutcomeSuccess).Inc()
	m.Signatures.WithLabelValues("kernel", "ecdsa").Add(2)
	m.IntentSubmissions.WithLabelValues("deploy", OutcomeFailure).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deployments.WithLabelValues("safe", "standard", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Signatures.WithLabelValues("kernel", "ecdsa")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentSubmissions.WithLabelValues("deploy", OutcomeFailure)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "polywallet_deployments_total")
	assert.Contains(t, names, "polywallet_signatures_total")
	assert.Contains(t, names, "polywallet_intent_submissions_total")
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Deployments.WithLabelValues("nexus", "delegation", OutcomeFailure).Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deployments.WithLabelValues("nexus", "delegation", OutcomeFailure)))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeFailure, Outcome(errors.New("boom")))
}
