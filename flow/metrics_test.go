package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/featureflow/flow/store"
)

func TestMetrics(t *testing.T) {
	t.Run("successful run records stages and outcome", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		p := New(testReducer, store.NewMemStore[testState](), nil, Options{MaxSteps: 10, Metrics: metrics})
		mustAdd(t, p, "a", deltaStage(testState{Counter: 1}))
		mustAdd(t, p, "b", deltaStage(testState{Counter: 1}))
		if err := p.StartAt("a"); err != nil {
			t.Fatalf("StartAt failed: %v", err)
		}
		if err := p.Connect("a", "b", nil); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := p.End("b", nil); err != nil {
			t.Fatalf("End failed: %v", err)
		}

		if _, err := p.Run(context.Background(), "run-metrics", testState{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if got := testutil.ToFloat64(metrics.stagesTotal.WithLabelValues("a", "success")); got != 1 {
			t.Errorf("stages_total{a,success} = %v, want 1", got)
		}
		if got := testutil.ToFloat64(metrics.stagesTotal.WithLabelValues("b", "success")); got != 1 {
			t.Errorf("stages_total{b,success} = %v, want 1", got)
		}
		if got := testutil.ToFloat64(metrics.runsTotal.WithLabelValues("completed")); got != 1 {
			t.Errorf("runs_total{completed} = %v, want 1", got)
		}
		if got := testutil.ToFloat64(metrics.activeRuns); got != 0 {
			t.Errorf("active_runs = %v, want 0 after run", got)
		}
	})

	t.Run("failed run records error outcome", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		p := New(testReducer, store.NewMemStore[testState](), nil, Options{MaxSteps: 10, Metrics: metrics})
		mustAdd(t, p, "fail", StageFunc[testState](func(_ context.Context, _ testState) StageResult[testState] {
			return StageResult[testState]{Err: errors.New("boom")}
		}))
		if err := p.StartAt("fail"); err != nil {
			t.Fatalf("StartAt failed: %v", err)
		}

		if _, err := p.Run(context.Background(), "run-metrics-err", testState{}); err == nil {
			t.Fatal("expected run to fail")
		}

		if got := testutil.ToFloat64(metrics.stagesTotal.WithLabelValues("fail", "error")); got != 1 {
			t.Errorf("stages_total{fail,error} = %v, want 1", got)
		}
		if got := testutil.ToFloat64(metrics.runsTotal.WithLabelValues("error")); got != 1 {
			t.Errorf("runs_total{error} = %v, want 1", got)
		}
	})
}
