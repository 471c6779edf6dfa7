package metrics

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/workflow"
)

func newTestCollector() *Collector {
	return NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCollectorCounters(t *testing.T) {
	c := newTestCollector()

	c.Step("draft")
	c.Step("draft")
	c.ToolCall("commit_section", "ok")
	c.BreakerTrip("search_sources")
	c.Retry()
	c.Skip()
	c.SynthesisPlaceholder()
	c.PersistFailure()

	if got := testutil.ToFloat64(c.steps.WithLabelValues("draft")); got != 2 {
		t.Errorf("steps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.toolCalls.WithLabelValues("commit_section", "ok")); got != 1 {
		t.Errorf("tool calls = %v", got)
	}
	if got := testutil.ToFloat64(c.breakerTrips.WithLabelValues("search_sources")); got != 1 {
		t.Errorf("breaker trips = %v", got)
	}
	for name, counter := range map[string]float64{
		"retries":      testutil.ToFloat64(c.retries),
		"skips":        testutil.ToFloat64(c.skips),
		"placeholders": testutil.ToFloat64(c.placeholders),
		"persist":      testutil.ToFloat64(c.persistFails),
	} {
		if counter != 1 {
			t.Errorf("%s = %v, want 1", name, counter)
		}
	}
}

func TestCollectorObservesSteps(t *testing.T) {
	c := newTestCollector()

	c.ModelCall("planner", time.Second, nil)
	c.ModelCall("planner", time.Second, errors.New("boom"))
	c.OnStep(workflow.StepEvent{Node: workflow.NodeDraft, Next: workflow.NodeTools, Elapsed: time.Millisecond})
	c.OnStep(workflow.StepEvent{Node: workflow.NodeSynthesize, Next: workflow.NodeEnd, Directive: session.DirectiveDone})

	if got := testutil.CollectAndCount(c.modelDuration); got != 2 {
		t.Errorf("model duration series = %d, want 2", got)
	}
	if got := testutil.CollectAndCount(c.stepDuration); got != 2 {
		t.Errorf("step duration series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(c.sessionsFinished.WithLabelValues("done")); got != 1 {
		t.Errorf("finished sessions = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := newTestCollector()
	c.Skip()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reportflow_task_skips_total 1") {
		t.Error("skip counter missing from exposition")
	}
}
