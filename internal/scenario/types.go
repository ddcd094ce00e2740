// Package scenario sequences dependent API calls into scenarios, threading captured
// values between steps through a per-scenario State and reporting every step outcome.
package scenario

import (
	"time"

	"petcontract/internal/apiclient"
)

// Scenario is an ordered sequence of dependent steps forming one test narrative.
type Scenario struct {
	Name        string
	Description string
	Tags        []string
	// Vars seeds the scenario State before the first step runs.
	Vars  map[string]any
	Steps []Step
}

// Step is a single request plus the expectations evaluated against its Result.
type Step struct {
	Name    string
	Request Request
	// Expect is evaluated in order; evaluation stops at the first failure.
	Expect []Assertion
	// Capture stores response values into State once every expectation passed:
	// state key -> gjson path (e.g. "id", "category.name").
	Capture map[string]string
}

// Request is a step's HTTP call. Every string may contain {{key}} placeholders.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    any
	Upload  *apiclient.Upload
}

// Outcome classifies a step after the run
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name    string
	Method  string
	Path    string
	Status  int
	Elapsed time.Duration
	Outcome Outcome
	// Err is a *core.HarnessError when Outcome is failed.
	Err error
}

// Result records the outcome of an entire scenario.
type Result struct {
	Scenario string
	Passed   bool
	Steps    []StepResult
	Duration time.Duration
	// Err is set when the scenario failed outside of a step (definition errors, panics).
	Err error
}

// FailedStep returns the first failed step, if any.
func (r *Result) FailedStep() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

// Count returns how many steps ended with the given outcome.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Observer receives outcomes as they happen. Implementations must be safe for
// concurrent use because scenarios run in parallel.
type Observer interface {
	StepFinished(scenario string, step StepResult)
	ScenarioFinished(result *Result)
}
