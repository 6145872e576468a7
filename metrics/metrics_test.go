package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/types"
)

func TestMetrics(t *testing.T) {
	m := New()

	done := m.Begin(types.KindNative)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeInvokes))
	done("increment", types.PhaseCommitted, 3, 2)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeInvokes))

	m.Begin(types.KindWasm)("poke", types.PhaseReverted, 1, 5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocations.WithLabelValues("increment", "committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invocations.WithLabelValues("poke", "reverted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.events), "reverted events are not counted")

	m.Phase(types.PhaseDispatching)
	m.Phase(types.PhaseDispatching)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.phases.WithLabelValues("dispatching")))

	m.Deployed(types.KindNative)
	m.BlockHeight(12)
	assert.Equal(t, float64(12), testutil.ToFloat64(m.blockHeight))

	n, err := testutil.GatherAndCount(m.Registry)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Phase(types.PhaseIdle)
		m.Begin(types.KindNative)("get", types.PhaseCommitted, 0, 0)
		m.Deployed(types.KindWasm)
		m.BlockHeight(1)
	})
}
