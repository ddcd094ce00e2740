package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/core"
	"petcontract/internal/scenario"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.StepFinished("pets", scenario.StepResult{Name: "create", Outcome: scenario.OutcomePassed, Elapsed: 40 * time.Millisecond})
	c.StepFinished("pets", scenario.StepResult{
		Name: "read", Outcome: scenario.OutcomeFailed, Elapsed: 20 * time.Millisecond,
		Err: core.NewAssertionError("unexpected status", "200", "404"),
	})
	c.StepFinished("pets", scenario.StepResult{Name: "delete", Outcome: scenario.OutcomeSkipped})
	c.ScenarioFinished(&scenario.Result{Scenario: "pets", Passed: false})
	c.ScenarioFinished(&scenario.Result{Scenario: "store", Passed: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.steps.WithLabelValues("pets", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.steps.WithLabelValues("pets", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.steps.WithLabelValues("pets", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("assertion_failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastSuccess.WithLabelValues("pets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lastSuccess.WithLabelValues("store")))

	assert.Equal(t, 2, testutil.CollectAndCount(c.stepDuration))

	expected := `
# HELP petcontract_scenarios_total Completed scenario runs by result.
# TYPE petcontract_scenarios_total counter
petcontract_scenarios_total{result="failed",scenario="pets"} 1
petcontract_scenarios_total{result="passed",scenario="store"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "petcontract_scenarios_total"))
}

func TestNew_RegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
