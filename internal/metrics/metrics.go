// Package metrics exports scenario and step outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"petcontract/internal/core"
	"petcontract/internal/scenario"
)

const namespace = "petcontract"

// Collector records runner events. It implements scenario.Observer.
type Collector struct {
	stepDuration *prometheus.HistogramVec
	steps        *prometheus.CounterVec
	scenarios    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock latency of executed scenario steps.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"scenario", "step"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Scenario steps by outcome.",
		}, []string{"scenario", "outcome"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Completed scenario runs by result.",
		}, []string{"scenario", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed steps by error type.",
		}, []string{"error_type"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_last_success",
			Help:      "1 if the latest run of the scenario passed, 0 otherwise.",
		}, []string{"scenario"}),
	}
	reg.MustRegister(c.stepDuration, c.steps, c.scenarios, c.failures, c.lastSuccess)
	return c
}

// StepFinished implements scenario.Observer.
func (c *Collector) StepFinished(scenarioName string, step scenario.StepResult) {
	c.steps.WithLabelValues(scenarioName, string(step.Outcome)).Inc()
	if step.Outcome == scenario.OutcomeSkipped {
		return
	}
	if step.Elapsed > 0 {
		c.stepDuration.WithLabelValues(scenarioName, step.Name).Observe(step.Elapsed.Seconds())
	}
	if step.Outcome == scenario.OutcomeFailed {
		c.failures.WithLabelValues(string(core.TypeOf(step.Err))).Inc()
	}
}

// ScenarioFinished implements scenario.Observer.
func (c *Collector) ScenarioFinished(result *scenario.Result) {
	if result.Passed {
		c.scenarios.WithLabelValues(result.Scenario, "passed").Inc()
		c.lastSuccess.WithLabelValues(result.Scenario).Set(1)
		return
	}
	c.scenarios.WithLabelValues(result.Scenario, "failed").Inc()
	c.lastSuccess.WithLabelValues(result.Scenario).Set(0)
}
