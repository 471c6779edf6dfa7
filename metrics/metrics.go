package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richinex/reportflow/workflow"
)

// Collector records engine events as Prometheus metrics. It implements
// workflow.Metrics and workflow.Observer.
type Collector struct {
	logger   *slog.Logger
	registry *prometheus.Registry

	steps          *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	breakerTrips   *prometheus.CounterVec
	retries        prometheus.Counter
	skips          prometheus.Counter
	placeholders   prometheus.Counter
	persistFails   prometheus.Counter
	modelDuration  *prometheus.HistogramVec
	sessionsFinished *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Collector{
		logger:   logger,
		registry: reg,
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reportflow_steps_total",
			Help: "Workflow steps executed by node",
		}, []string{"node"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportflow_step_duration_seconds",
			Help:    "Workflow step duration in seconds by node",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
		}, []string{"node"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reportflow_tool_calls_total",
			Help: "Tool calls by tool and outcome",
		}, []string{"tool", "status"}),
		breakerTrips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reportflow_research_limit_total",
			Help: "Research calls answered with the limit placeholder",
		}, []string{"tool"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "reportflow_task_retries_total",
			Help: "Drafting retries",
		}),
		skips: f.NewCounter(prometheus.CounterOpts{
			Name: "reportflow_task_skips_total",
			Help: "Tasks skipped after exhausting retries",
		}),
		placeholders: f.NewCounter(prometheus.CounterOpts{
			Name: "reportflow_synthesis_placeholders_total",
			Help: "Sections replaced by a synthesis error placeholder",
		}),
		persistFails: f.NewCounter(prometheus.CounterOpts{
			Name: "reportflow_persist_failures_total",
			Help: "Sections drafted but not persisted",
		}),
		modelDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportflow_model_call_duration_seconds",
			Help:    "Model call duration in seconds by node",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		}, []string{"node", "status"}),
		sessionsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reportflow_sessions_finished_total",
			Help: "Sessions that reached the end node, by directive",
		}, []string{"directive"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Step(node string) {
	c.steps.WithLabelValues(node).Inc()
}

func (c *Collector) ToolCall(tool, status string) {
	c.toolCalls.WithLabelValues(tool, status).Inc()
}

func (c *Collector) BreakerTrip(tool string) {
	c.breakerTrips.WithLabelValues(tool).Inc()
}

func (c *Collector) Retry() { c.retries.Inc() }

func (c *Collector) Skip() { c.skips.Inc() }

func (c *Collector) SynthesisPlaceholder() { c.placeholders.Inc() }

func (c *Collector) PersistFailure() { c.persistFails.Inc() }

// ModelCall records a model call duration.
func (c *Collector) ModelCall(node string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.modelDuration.WithLabelValues(node, status).Observe(d.Seconds())
}

// OnStep records step timings and finished sessions.
func (c *Collector) OnStep(e workflow.StepEvent) {
	c.stepDuration.WithLabelValues(string(e.Node)).Observe(e.Elapsed.Seconds())
	if e.Next == workflow.NodeEnd {
		c.sessionsFinished.WithLabelValues(string(e.Directive)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}()

	c.logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var (
	_ workflow.Metrics  = (*Collector)(nil)
	_ workflow.Observer = (*Collector)(nil)
)
