// Package metrics exposes Prometheus collectors for advice runs, crew
// tasks, tool calls and model calls. A Metrics value implements the
// observer interfaces of the crew and tool packages.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/finmesh/answer"
	"github.com/hupe1980/finmesh/crew"
)

const namespace = "finmesh"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	AdviceRequests   *prometheus.CounterVec
	AdviceDuration   prometheus.Histogram
	InFlight         prometheus.Gauge
	PortfolioSkipped *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	ToolCalls        *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
	ModelCalls       *prometheus.CounterVec
	ModelLatency     *prometheus.HistogramVec
	ModelTokens      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		AdviceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advice_requests_total",
				Help:      "Total number of advice requests by outcome",
			},
			[]string{"outcome"}, // resolved|no_advice|parse_failed|pipeline_failed
		),
		AdviceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advice_duration_seconds",
				Help:      "End-to-end advice request duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "advice_in_flight",
				Help:      "Number of advice runs currently executing",
			},
		),
		PortfolioSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "portfolio_context_skipped_total",
				Help:      "Advice requests that proceeded without portfolio context",
			},
			[]string{"reason"}, // not_found|error
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Crew task duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"task", "status"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"tool", "status"}, // success|error
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		ModelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_calls_total",
				Help:      "Total number of model calls",
			},
			[]string{"provider", "model", "status"},
		),
		ModelLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_latency_seconds",
				Help:      "Model call latency in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model"},
		),
		ModelTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_tokens_total",
				Help:      "Total tokens used by model calls",
			},
			[]string{"provider", "model", "type"}, // prompt|completion
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.AdviceRequests,
		m.AdviceDuration,
		m.InFlight,
		m.PortfolioSkipped,
		m.TaskDuration,
		m.ToolCalls,
		m.ToolDuration,
		m.ModelCalls,
		m.ModelLatency,
		m.ModelTokens,
	)

	for _, o := range answer.Outcomes() {
		m.AdviceRequests.WithLabelValues(string(o))
	}

	return m
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAdvice records a finished advice request.
func (m *Metrics) ObserveAdvice(outcome answer.Outcome, duration time.Duration) {
	m.AdviceRequests.WithLabelValues(string(outcome)).Inc()
	m.AdviceDuration.Observe(duration.Seconds())
}

// ObservePortfolioSkipped records an advice request that continued without
// portfolio context.
func (m *Metrics) ObservePortfolioSkipped(reason string) {
	m.PortfolioSkipped.WithLabelValues(reason).Inc()
}

// RunStarted marks an advice run as in flight.
func (m *Metrics) RunStarted() { m.InFlight.Inc() }

// RunFinished marks an advice run as done.
func (m *Metrics) RunFinished() { m.InFlight.Dec() }

// ObserveTask implements crew.Observer.
func (m *Metrics) ObserveTask(task string, status crew.TaskStatus, duration time.Duration) {
	m.TaskDuration.WithLabelValues(task, string(status)).Observe(duration.Seconds())
}

// ObserveToolCall implements tool.Observer.
func (m *Metrics) ObserveToolCall(name string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.ToolCalls.WithLabelValues(name, status).Inc()
	m.ToolDuration.WithLabelValues(name).Observe(duration.Seconds())
}
