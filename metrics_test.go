package jobpool

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("counts jobs", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		subject, err := NewWorkerPool(WithWorkers(2), WithName("render"), WithMetrics(reg))
		require.NoError(t, err)

		var handles []*Handle
		for range 8 {
			handles = append(handles, subject.SubmitErr(func() error { return nil }))
		}
		handles = append(handles, subject.SubmitErr(func() error { panic("boom") }))
		_ = WaitAll(ctx, handles...)
		subject.Stop(ctx)
		subject.Submit(noop)

		m := subject.metrics
		require.InDelta(t, 9, testutil.ToFloat64(m.submitted), 0)
		require.InDelta(t, 9, testutil.ToFloat64(m.completed), 0)
		require.InDelta(t, 1, testutil.ToFloat64(m.panicked), 0)
		require.InDelta(t, 1, testutil.ToFloat64(m.dropped), 0)
		require.InDelta(t, 0, testutil.ToFloat64(m.queueDepth), 0)
		require.InDelta(t, 0, testutil.ToFloat64(m.busy), 0)

		expected := `
# HELP jobpool_jobs_panicked_total Jobs that panicked.
# TYPE jobpool_jobs_panicked_total counter
jobpool_jobs_panicked_total{pool="render"} 1
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "jobpool_jobs_panicked_total"))
	})

	t.Run("queue depth and dropped on stop", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		subject, err := NewWorkerPool(WithMetrics(reg))
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		subject.Submit(func() { close(started); <-release })
		<-started
		for range 4 {
			subject.Submit(noop)
		}

		m := subject.metrics
		require.InDelta(t, 4, testutil.ToFloat64(m.queueDepth), 0)
		require.InDelta(t, 1, testutil.ToFloat64(m.busy), 0)

		close(release)
		subject.Stop(ctx)

		// the queued jobs may have been claimed before the flag was set.
		dropped := testutil.ToFloat64(m.dropped)
		completed := testutil.ToFloat64(m.completed)
		require.InDelta(t, 5, dropped+completed, 0)
		require.InDelta(t, 0, testutil.ToFloat64(m.queueDepth), 0)
	})

	t.Run("same name twice on one registry", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		first := newTestPool(t, WithName("dup"), WithMetrics(reg))
		require.NotNil(t, first)

		second, err := NewWorkerPool(WithName("dup"), WithMetrics(reg))
		require.ErrorIs(t, err, ErrMetricsRegistered)
		require.Nil(t, second)

		third := newTestPool(t, WithName("other"), WithMetrics(reg))
		require.NotNil(t, third)
	})
}
