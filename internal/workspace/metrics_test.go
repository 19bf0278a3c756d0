package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveSwitch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ctx := context.Background()

	m.ObserveSwitch(ctx, &Result{Duration: 10 * time.Millisecond, Faults: []Fault{
		{Handler: "git", Phase: PhaseLoad, Err: errHook},
		{Handler: "git", Phase: PhaseLoad, Err: errHook, Panicked: true},
	}})
	m.ObserveSwitch(ctx, &Result{Noop: true})
	m.ObserveSwitch(ctx, &Result{StateMissing: true})
	m.ObserveSwitch(ctx, &Result{Reload: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("switch", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("switch", OutcomeNoop)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("switch", OutcomeStateMissing)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("reload", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.faults.WithLabelValues("git", "load")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panics))

	count, err := testutil.GatherAndCount(reg, "projecthub_workspace_switch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per kind")
}

func TestMetrics_AsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	f := newFixture(t)
	f.coord.Observe(m)
	require.NoError(t, f.registry.Register("bad", 10, Hooks{
		OnLoad: func(context.Context, *SwitchContext) error { return errHook },
	}))

	_, err := f.coord.Switch(context.Background(), f.alpha.ID)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("switch", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.faults.WithLabelValues("bad", "load")))
}
